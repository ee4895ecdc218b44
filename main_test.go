package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"node.town/callsense/config"
	"node.town/callsense/llm"
	"node.town/callsense/stt"
	"node.town/callsense/task"
)

const jfk = "ask not what your country can do for you"

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jfk.flac")
	require.NoError(t, os.WriteFile(path, []byte("fLaC fake audio"), 0o600))
	return path
}

func TestUploadCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze-call", r.URL.Path)

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "jfk.flac", header.Filename)
		assert.Equal(t, "fLaC fake audio", string(data))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"message":"Analysis started","task_id":"task_1"}`))
	}))
	defer server.Close()

	id, err := uploadCall(context.Background(), server.Client(), server.URL+"/", writeAudio(t))
	require.NoError(t, err)
	assert.Equal(t, "task_1", id)
}

func TestUploadCallServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"missing file"}`))
	}))
	defer server.Close()

	_, err := uploadCall(context.Background(), server.Client(), server.URL, writeAudio(t))
	assert.EqualError(t, err, "server returned 400: missing file")
}

func TestUploadCallMissingFile(t *testing.T) {
	_, err := uploadCall(
		context.Background(),
		http.DefaultClient,
		"http://127.0.0.1:1",
		filepath.Join(t.TempDir(), "nope.wav"),
	)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWaitForResult(t *testing.T) {
	score := 0.99
	tests := []struct {
		name      string
		responses []task.Task
		want      task.Task
	}{
		{
			name: "completes after polling",
			responses: []task.Task{
				{ID: "task_1", Status: task.StatusProcessing},
				{ID: "task_1", Status: task.StatusProcessing},
				{
					ID:             "task_1",
					Status:         task.StatusCompleted,
					Transcript:     jfk,
					Sentiment:      "POSITIVE",
					SentimentScore: &score,
					Summary:        llm.ShortTextSummary,
				},
			},
			want: task.Task{
				ID:             "task_1",
				Status:         task.StatusCompleted,
				Transcript:     jfk,
				Sentiment:      "POSITIVE",
				SentimentScore: &score,
				Summary:        llm.ShortTextSummary,
			},
		},
		{
			name: "fails",
			responses: []task.Task{
				{ID: "task_1", Status: task.StatusFailed, Error: "transcribe: boom"},
			},
			want: task.Task{ID: "task_1", Status: task.StatusFailed, Error: "transcribe: boom"},
		},
		{
			name: "stops on not_found",
			responses: []task.Task{
				{ID: "task_1", Status: task.StatusNotFound},
			},
			want: task.Task{ID: "task_1", Status: task.StatusNotFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/results/task_1", r.URL.Path)
				n := int(calls.Add(1)) - 1
				if n >= len(tt.responses) {
					n = len(tt.responses) - 1
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(tt.responses[n])
			}))
			defer server.Close()

			got, err := waitForResult(
				context.Background(),
				server.Client(),
				server.URL,
				"task_1",
				time.Millisecond,
			)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int32(len(tt.responses)), calls.Load())
		})
	}
}

func TestWaitForResultCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"task_id":"task_1","status":"processing"}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := waitForResult(ctx, server.Client(), server.URL, "task_1", time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPrintTask(t *testing.T) {
	score := 0.42
	var buf bytes.Buffer
	printTask(&buf, task.Task{
		ID:             "task_1",
		Status:         task.StatusCompleted,
		Transcript:     jfk,
		Sentiment:      "NEUTRAL",
		SentimentScore: &score,
		Summary:        llm.ShortTextSummary,
	})

	out := buf.String()
	for _, want := range []string{"task_1", "completed", "NEUTRAL", "0.42", llm.ShortTextSummary, jfk} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "ERROR")
}

type fixedModel struct{}

func (fixedModel) ClassifySentiment(_ context.Context, _ string) (llm.Sentiment, error) {
	return llm.Sentiment{Label: "positive", Score: 0.987}, nil
}

func (fixedModel) Summarize(_ context.Context, _ string) (string, error) {
	return "unused", nil
}

func TestAnalyzeLocalKeepsInput(t *testing.T) {
	path := writeAudio(t)
	var seen string
	transcriber := stt.TranscriberFunc(func(_ context.Context, audioPath string) (string, error) {
		seen = audioPath
		return jfk, nil
	})

	got, err := analyzeLocal(
		context.Background(),
		transcriber,
		llm.NewTextAnalyzer(fixedModel{}, log.New(io.Discard)),
		path,
		log.New(io.Discard),
	)
	require.NoError(t, err)

	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, "POSITIVE", got.Sentiment)
	require.NotNil(t, got.SentimentScore)
	assert.Equal(t, 0.99, *got.SentimentScore)
	assert.Equal(t, llm.ShortTextSummary, got.Summary)

	assert.NotEqual(t, path, seen)
	assert.NoFileExists(t, seen)
	assert.FileExists(t, path)
}

func TestAnalyzeLocalFailure(t *testing.T) {
	transcriber := stt.TranscriberFunc(func(_ context.Context, _ string) (string, error) {
		return "", errors.New("no speech service")
	})

	got, err := analyzeLocal(
		context.Background(),
		transcriber,
		llm.NewTextAnalyzer(fixedModel{}, log.New(io.Discard)),
		writeAudio(t),
		log.New(io.Discard),
	)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "no speech service")
}

func TestNewBackends(t *testing.T) {
	quiet := log.New(io.Discard)

	t.Run("openai", func(t *testing.T) {
		b, err := newBackends(context.Background(), config.Config{
			Transcriber:  config.BackendOpenAI,
			Analyzer:     config.BackendOpenAI,
			OpenAIAPIKey: "sk-test",
		}, quiet, quiet)
		require.NoError(t, err)
		defer b.Close()

		assert.IsType(t, &stt.OpenAITranscriber{}, b.transcriber)
		assert.IsType(t, &llm.TextAnalyzer{}, b.analyzer)
		assert.Nil(t, b.gemini)
	})

	t.Run("speechmatics", func(t *testing.T) {
		b, err := newBackends(context.Background(), config.Config{
			Transcriber:        config.BackendSpeechmatics,
			Analyzer:           config.BackendOpenAI,
			SpeechmaticsAPIKey: "sm-test",
			OpenAIAPIKey:       "sk-test",
		}, quiet, quiet)
		require.NoError(t, err)
		defer b.Close()

		assert.IsType(t, &stt.SpeechmaticsTranscriber{}, b.transcriber)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := newBackends(context.Background(), config.Config{
			Transcriber: config.BackendOpenAI,
			Analyzer:    config.BackendOpenAI,
		}, quiet, quiet)
		assert.ErrorIs(t, err, stt.ErrAPIKeyNotSet)
	})

	t.Run("unknown analyzer", func(t *testing.T) {
		_, err := newBackends(context.Background(), config.Config{
			Transcriber:  config.BackendOpenAI,
			Analyzer:     "prolog",
			OpenAIAPIKey: "sk-test",
		}, quiet, quiet)
		assert.ErrorIs(t, err, config.ErrUnknownBackend)
	})
}
