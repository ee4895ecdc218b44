package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendOpenAI       = "openai"
	BackendGemini       = "gemini"
	BackendSpeechmatics = "speechmatics"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrMissingAPIKey  = errors.New("missing API key")
)

type Config struct {
	HTTPPort        int
	UploadDir       string
	MaxUploadMB     int64
	TaskTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	LogLevel        string

	Transcriber string
	Analyzer    string

	OpenAIAPIKey             string
	OpenAITranscriptionModel string
	OpenAIAnalysisModel      string

	GeminiAPIKey string
	GeminiModel  string

	SpeechmaticsAPIKey   string
	SpeechmaticsLanguage string
}

// SetDefaults registers every key so that AutomaticEnv can find it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8000)
	v.SetDefault("upload_dir", filepath.Join(os.TempDir(), "callsense"))
	v.SetDefault("max_upload_mb", 100)
	v.SetDefault("task_timeout", time.Duration(0))
	v.SetDefault("shutdown_timeout", 30*time.Second)
	v.SetDefault("cors_origins", []string{"http://localhost", "http://localhost:3000"})
	v.SetDefault("log_level", "info")

	v.SetDefault("transcriber", BackendOpenAI)
	v.SetDefault("analyzer", BackendOpenAI)

	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_transcription_model", "whisper-1")
	v.SetDefault("openai_analysis_model", "gpt-4o-mini")

	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-1.5-flash")

	v.SetDefault("speechmatics_api_key", "")
	v.SetDefault("speechmatics_language", "en")
}

// Load reads the typed configuration out of v. It does not validate
// backend credentials; see Validate.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		HTTPPort:        v.GetInt("http_port"),
		UploadDir:       v.GetString("upload_dir"),
		MaxUploadMB:     v.GetInt64("max_upload_mb"),
		TaskTimeout:     v.GetDuration("task_timeout"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		CORSOrigins:     splitList(v.GetStringSlice("cors_origins")),
		LogLevel:        v.GetString("log_level"),

		Transcriber: v.GetString("transcriber"),
		Analyzer:    v.GetString("analyzer"),

		OpenAIAPIKey:             v.GetString("openai_api_key"),
		OpenAITranscriptionModel: v.GetString("openai_transcription_model"),
		OpenAIAnalysisModel:      v.GetString("openai_analysis_model"),

		GeminiAPIKey: v.GetString("gemini_api_key"),
		GeminiModel:  v.GetString("gemini_model"),

		SpeechmaticsAPIKey:   v.GetString("speechmatics_api_key"),
		SpeechmaticsLanguage: v.GetString("speechmatics_language"),
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return Config{}, fmt.Errorf("invalid http_port %d", cfg.HTTPPort)
	}
	if cfg.MaxUploadMB <= 0 {
		return Config{}, fmt.Errorf("invalid max_upload_mb %d", cfg.MaxUploadMB)
	}
	if cfg.TaskTimeout < 0 {
		return Config{}, fmt.Errorf("invalid task_timeout %s", cfg.TaskTimeout)
	}
	return cfg, nil
}

// splitList flattens list values that arrive as one comma- or
// space-separated string, as they do from the environment.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		out = append(out, strings.FieldsFunc(value, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})...)
	}
	return out
}

func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Validate checks that the selected backends exist and have credentials.
func (c Config) Validate() error {
	transcribers := []string{BackendOpenAI, BackendGemini, BackendSpeechmatics}
	if !slices.Contains(transcribers, c.Transcriber) {
		return fmt.Errorf("%w: transcriber %q", ErrUnknownBackend, c.Transcriber)
	}
	analyzers := []string{BackendOpenAI, BackendGemini}
	if !slices.Contains(analyzers, c.Analyzer) {
		return fmt.Errorf("%w: analyzer %q", ErrUnknownBackend, c.Analyzer)
	}

	for _, backend := range []string{c.Transcriber, c.Analyzer} {
		if err := c.requireKey(backend); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) requireKey(backend string) error {
	var key, name string
	switch backend {
	case BackendOpenAI:
		key, name = c.OpenAIAPIKey, "OPENAI_API_KEY or --openai-api-key="
	case BackendGemini:
		key, name = c.GeminiAPIKey, "GEMINI_API_KEY or --gemini-api-key="
	case BackendSpeechmatics:
		key, name = c.SpeechmaticsAPIKey, "SPEECHMATICS_API_KEY or --speechmatics-api-key="
	}
	if key == "" {
		return fmt.Errorf("%w: %s", ErrMissingAPIKey, name)
	}
	return nil
}

// LoadEnvFile exports the variables in path into the environment without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
