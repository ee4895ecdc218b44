package stt

import (
	"context"
	"strings"
)

// Transcriber turns an audio file on disk into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// TranscriberFunc adapts a plain function to Transcriber.
type TranscriberFunc func(ctx context.Context, audioPath string) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return f(ctx, audioPath)
}

// Normalize trims a raw transcript. Silence yields an empty transcript,
// which is still a valid result.
func Normalize(text string) string {
	return strings.TrimSpace(text)
}
