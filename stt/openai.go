package stt

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const DefaultOpenAIModel = "whisper-1"

// ErrAPIKeyNotSet is returned when a backend is built without credentials.
var ErrAPIKeyNotSet = errors.New("API key not set")

// OpenAITranscriber uses the OpenAI audio transcription endpoint.
type OpenAITranscriber struct {
	client openai.Client
	model  string
	logger *log.Logger
}

func NewOpenAITranscriber(
	apiKey string,
	model string,
	logger *log.Logger,
	opts ...option.RequestOption,
) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrAPIKeyNotSet)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if logger == nil {
		logger = log.Default()
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAITranscriber{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}, nil
}

func (t *OpenAITranscriber) Transcribe(
	ctx context.Context,
	audioPath string,
) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	t.logger.Debug("transcribe", "backend", "openai", "model", t.model, "path", audioPath)

	resp, err := t.client.Audio.Transcriptions.New(
		ctx,
		openai.AudioTranscriptionNewParams{
			File:  file,
			Model: openai.AudioModel(t.model),
		},
	)
	if err != nil {
		return "", fmt.Errorf("OpenAI transcription error: %w", err)
	}

	return Normalize(resp.Text), nil
}

var _ Transcriber = (*OpenAITranscriber)(nil)
