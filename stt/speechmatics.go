package stt

import (
	"context"
	"fmt"
	"time"

	"node.town/callsense/speechmatics"
)

// SpeechmaticsTranscriber submits each file as a Speechmatics batch job.
type SpeechmaticsTranscriber struct {
	client       *speechmatics.Client
	language     string
	pollInterval time.Duration
}

func NewSpeechmaticsTranscriber(
	client *speechmatics.Client,
	language string,
	pollInterval time.Duration,
) (*SpeechmaticsTranscriber, error) {
	if client == nil || client.APIKey == "" {
		return nil, fmt.Errorf("speechmatics: %w", ErrAPIKeyNotSet)
	}
	if language == "" {
		language = "en"
	}
	return &SpeechmaticsTranscriber{
		client:       client,
		language:     language,
		pollInterval: pollInterval,
	}, nil
}

func (t *SpeechmaticsTranscriber) Transcribe(
	ctx context.Context,
	audioPath string,
) (string, error) {
	text, err := t.client.SubmitAndWaitForTranscript(
		ctx,
		audioPath,
		speechmatics.TranscriptionConfig{
			Language:       t.language,
			OperatingPoint: speechmatics.OperatingPointEnhanced,
		},
		t.pollInterval,
	)
	if err != nil {
		return "", fmt.Errorf("speechmatics: %w", err)
	}
	return Normalize(text), nil
}

var _ Transcriber = (*SpeechmaticsTranscriber)(nil)
