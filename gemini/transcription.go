package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"node.town/callsense/stt"
)

const transcriptionPrompt = `Transcribe this call recording as accurately as possible, with good grammar and punctuation.

Output only the transcript text, without speaker labels, timestamps or commentary.`

const fileStatePollInterval = 2 * time.Second

// ErrUploadFailed is returned when the Files API cannot process an upload.
var ErrUploadFailed = errors.New("uploaded audio failed processing")

var audioMIMETypes = map[string]string{
	".aac":  "audio/aac",
	".aif":  "audio/aiff",
	".aiff": "audio/aiff",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mp3",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
}

func audioMIMEType(path string) string {
	if t, ok := audioMIMETypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "audio/mp3"
}

// Transcribe uploads the file to the Gemini Files API, asks the model for a
// transcript and deletes the uploaded copy afterwards.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	file, err := c.api.UploadFile(ctx, "", f, &genai.UploadFileOptions{
		MIMEType: audioMIMEType(audioPath),
	})
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	defer func() {
		if err := c.api.DeleteFile(context.WithoutCancel(ctx), file.Name); err != nil {
			c.logger.Warn("delete uploaded audio", "file", file.Name, "error", err)
		}
	}()

	file, err = c.waitForActive(ctx, file)
	if err != nil {
		return "", err
	}

	c.logger.Debug("transcribe", "backend", "gemini", "uri", file.URI)

	resp, err := c.api.Generate(ctx, generateRequest{
		SystemPrompt: transcriptionPrompt,
		Temperature:  0.1,
		Parts: []genai.Part{
			genai.Text("<audio>\n"),
			genai.FileData{URI: file.URI, MIMEType: file.MIMEType},
			genai.Text("</audio>\n"),
		},
	})
	if err != nil {
		return "", fmt.Errorf("gemini transcription error: %w", err)
	}

	return stt.Normalize(getResponseText(resp)), nil
}

func (c *Client) waitForActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		switch file.State {
		case genai.FileStateActive:
			return file, nil
		case genai.FileStateFailed:
			return nil, fmt.Errorf("%w: %s", ErrUploadFailed, file.Name)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		next, err := c.api.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("get uploaded audio state: %w", err)
		}
		file = next
	}
}
