package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, filepath.Join(os.TempDir(), "callsense"), cfg.UploadDir)
	assert.Equal(t, int64(100<<20), cfg.MaxUploadBytes())
	assert.Equal(t, time.Duration(0), cfg.TaskTimeout)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"http://localhost", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, BackendOpenAI, cfg.Transcriber)
	assert.Equal(t, BackendOpenAI, cfg.Analyzer)
	assert.Equal(t, "whisper-1", cfg.OpenAITranscriptionModel)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIAnalysisModel)
	assert.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	assert.Equal(t, "en", cfg.SpeechmaticsLanguage)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("TASK_TIMEOUT", "90s")
	t.Setenv("TRANSCRIBER", "speechmatics")
	t.Setenv("SPEECHMATICS_API_KEY", "sm")

	v := newViper()
	v.AutomaticEnv()

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.Equal(t, 90*time.Second, cfg.TaskTimeout)
	assert.Equal(t, BackendSpeechmatics, cfg.Transcriber)
	assert.Equal(t, "sm", cfg.SpeechmaticsAPIKey)
}

func TestLoadCORSOrigins(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want []string
	}{
		{"comma separated", "http://a.test,http://b.test", []string{"http://a.test", "http://b.test"}},
		{"comma and space", "http://a.test, http://b.test", []string{"http://a.test", "http://b.test"}},
		{"space separated", "http://a.test http://b.test", []string{"http://a.test", "http://b.test"}},
		{"single", "http://a.test", []string{"http://a.test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CORS_ORIGINS", tt.env)
			v := newViper()
			v.AutomaticEnv()

			cfg, err := Load(v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.CORSOrigins)
		})
	}

	t.Run("config list", func(t *testing.T) {
		v := newViper()
		v.Set("cors_origins", []string{"http://a.test", "http://b.test"})

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	})
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]any{
		"http_port":     0,
		"max_upload_mb": -1,
		"task_timeout":  "-5s",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			v := newViper()
			v.Set(key, value)
			_, err := Load(v)
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "openai with key",
			mutate: func(c *Config) { c.OpenAIAPIKey = "sk" },
		},
		{
			name:    "openai without key",
			mutate:  func(*Config) {},
			wantErr: ErrMissingAPIKey,
		},
		{
			name: "gemini transcriber needs its own key",
			mutate: func(c *Config) {
				c.OpenAIAPIKey = "sk"
				c.Transcriber = BackendGemini
			},
			wantErr: ErrMissingAPIKey,
		},
		{
			name: "speechmatics and gemini",
			mutate: func(c *Config) {
				c.Transcriber = BackendSpeechmatics
				c.SpeechmaticsAPIKey = "sm"
				c.Analyzer = BackendGemini
				c.GeminiAPIKey = "g"
			},
		},
		{
			name: "speechmatics cannot analyze",
			mutate: func(c *Config) {
				c.SpeechmaticsAPIKey = "sm"
				c.Analyzer = BackendSpeechmatics
			},
			wantErr: ErrUnknownBackend,
		},
		{
			name:    "unknown transcriber",
			mutate:  func(c *Config) { c.Transcriber = "deepgram" },
			wantErr: ErrUnknownBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(newViper())
			require.NoError(t, err)
			tt.mutate(&cfg)

			err = cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CALLSENSE_TEST_ENV_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CALLSENSE_TEST_ENV_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("CALLSENSE_TEST_ENV_VALUE"))

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}
