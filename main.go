package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"node.town/callsense/config"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(analyzeCmd)

	rootCmd.PersistentFlags().String("openai-api-key", "", "OpenAI API key")
	rootCmd.PersistentFlags().String("gemini-api-key", "", "Gemini API key")
	rootCmd.PersistentFlags().
		String("speechmatics-api-key", "", "Speechmatics API key")
	rootCmd.PersistentFlags().
		String("transcriber", "", "Transcription backend (openai, gemini, speechmatics)")
	rootCmd.PersistentFlags().
		String("analyzer", "", "Analysis backend (openai, gemini)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level")

	viper.BindPFlag(
		"openai_api_key",
		rootCmd.PersistentFlags().Lookup("openai-api-key"),
	)
	viper.BindPFlag(
		"gemini_api_key",
		rootCmd.PersistentFlags().Lookup("gemini-api-key"),
	)
	viper.BindPFlag(
		"speechmatics_api_key",
		rootCmd.PersistentFlags().Lookup("speechmatics-api-key"),
	)
	viper.BindPFlag("transcriber", rootCmd.PersistentFlags().Lookup("transcriber"))
	viper.BindPFlag("analyzer", rootCmd.PersistentFlags().Lookup("analyzer"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading .env file: %s\n", err)
	}

	config.SetDefaults(viper.GetViper())
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
		}
	}

	logger = log.New(os.Stderr)
}

var rootCmd = &cobra.Command{
	Use:   "callsense",
	Short: "callsense transcribes and analyzes recorded calls",
	Long:  `callsense accepts call recordings over HTTP, transcribes them and reports sentiment and a summary.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

type loggers struct {
	main *log.Logger
	http *log.Logger
	task *log.Logger
	hear *log.Logger
	talk *log.Logger
}

func createLoggers() loggers {
	if logger == nil {
		logger = log.New(os.Stderr)
	}

	level, err := log.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		level = log.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetReportCaller(level == log.DebugLevel)
	logger.SetCallerFormatter(
		func(file string, line int, funcName string) string {
			path, err := filepath.Rel(".", file)
			if err != nil {
				path = file
			}
			return fmt.Sprintf("%s:%d", path, line)
		},
	)

	styles := log.DefaultStyles()
	styles.Prefix = styles.Prefix.
		Bold(false).Transform(func(s string) string {
		return strings.TrimSuffix(s, ":")
	})
	styles.Levels[log.InfoLevel] = styles.Levels[log.InfoLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Levels[log.ErrorLevel] = styles.Levels[log.ErrorLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Message = styles.Message.Bold(true).Width(24)
	styles.Key = styles.Key.MarginLeft(1).
		Bold(false).
		Foreground(lipgloss.Color("#ff8800"))

	logger.SetStyles(styles)

	return loggers{
		main: logger.With().WithPrefix("main"),
		http: logger.With().WithPrefix("http"),
		task: logger.With().WithPrefix("task"),
		hear: logger.With().WithPrefix("hear"),
		talk: logger.With().WithPrefix("talk"),
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
