package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	sentiment    Sentiment
	sentimentErr error
	summary      string
	summaryErr   error
	summarized   []string
}

func (m *fakeModel) ClassifySentiment(_ context.Context, _ string) (Sentiment, error) {
	return m.sentiment, m.sentimentErr
}

func (m *fakeModel) Summarize(_ context.Context, text string) (string, error) {
	m.summarized = append(m.summarized, text)
	return m.summary, m.summaryErr
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestTextAnalyzerSummaryThreshold(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantSummary   string
		wantSummarize bool
	}{
		{
			name:        "jfk quote",
			text:        "ask not what your country can do for you",
			wantSummary: ShortTextSummary,
		},
		{
			name:        "exactly fifty words",
			text:        words(50),
			wantSummary: ShortTextSummary,
		},
		{
			name:          "fifty one words",
			text:          words(51),
			wantSummary:   "model summary",
			wantSummarize: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{
				sentiment: Sentiment{Label: "POSITIVE", Score: 0.9},
				summary:   "  model summary \n",
			}
			analyzer := NewTextAnalyzer(model, log.New(io.Discard))

			got, err := analyzer.Analyze(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSummary, got.Summary)
			assert.Equal(t, tt.wantSummarize, len(model.summarized) == 1)
		})
	}
}

func TestTextAnalyzerNormalizesSentiment(t *testing.T) {
	model := &fakeModel{sentiment: Sentiment{Label: " negative ", Score: 0.876}}
	got, err := NewTextAnalyzer(model, nil).Analyze(context.Background(), "this was awful")
	require.NoError(t, err)

	assert.Equal(t, Analysis{
		Sentiment: "NEGATIVE",
		Score:     0.88,
		Summary:   ShortTextSummary,
	}, got)
}

func TestTextAnalyzerErrors(t *testing.T) {
	t.Run("sentiment", func(t *testing.T) {
		model := &fakeModel{sentimentErr: errors.New("boom")}
		_, err := NewTextAnalyzer(model, nil).Analyze(context.Background(), "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "classify sentiment: boom")
	})

	t.Run("summary", func(t *testing.T) {
		model := &fakeModel{summaryErr: errors.New("boom")}
		_, err := NewTextAnalyzer(model, nil).Analyze(context.Background(), words(60))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "summarize: boom")
	})
}

func TestRoundScore(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.994, 0.99},
		{0.996, 1},
		{0.12345, 0.12},
		{-0.2, 0},
		{1.7, 1},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundScore(tt.in), "RoundScore(%v)", tt.in)
	}
}

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Sentiment
		wantErr bool
	}{
		{
			name: "plain",
			raw:  `{"label":"POSITIVE","score":0.91}`,
			want: Sentiment{Label: "POSITIVE", Score: 0.91},
		},
		{
			name: "fenced",
			raw:  "```json\n{\"label\":\"NEGATIVE\",\"score\":0.7}\n```",
			want: Sentiment{Label: "NEGATIVE", Score: 0.7},
		},
		{
			name: "sentiment key",
			raw:  `{"sentiment":"NEUTRAL","score":0.5}`,
			want: Sentiment{Label: "NEUTRAL", Score: 0.5},
		},
		{name: "missing score", raw: `{"label":"POSITIVE"}`, wantErr: true},
		{name: "not json", raw: "POSITIVE", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSentiment(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedSentiment)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
