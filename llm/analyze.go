package llm

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/log"
	"node.town/callsense/etc"
)

const (
	// ShortTextWordLimit is the largest word count that is not sent to the
	// summarizer.
	ShortTextWordLimit = 50
	ShortTextSummary   = "Text too short to summarize."
)

// Analysis is the combined output of the text-analysis pipeline.
type Analysis struct {
	Sentiment string
	Score     float64
	Summary   string
}

type Sentiment struct {
	Label string
	Score float64
}

// Analyzer produces sentiment and summary for a transcript.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Analysis, error)
}

type SentimentClassifier interface {
	ClassifySentiment(ctx context.Context, text string) (Sentiment, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// LanguageModel is a backend able to do both halves of the analysis.
type LanguageModel interface {
	SentimentClassifier
	Summarizer
}

// TextAnalyzer runs sentiment classification on every transcript and
// summarization only on transcripts longer than ShortTextWordLimit words.
type TextAnalyzer struct {
	classifier SentimentClassifier
	summarizer Summarizer
	logger     *log.Logger
}

func NewTextAnalyzer(model LanguageModel, logger *log.Logger) *TextAnalyzer {
	return NewSplitAnalyzer(model, model, logger)
}

// NewSplitAnalyzer allows sentiment and summary to come from different
// backends.
func NewSplitAnalyzer(
	classifier SentimentClassifier,
	summarizer Summarizer,
	logger *log.Logger,
) *TextAnalyzer {
	if logger == nil {
		logger = log.Default()
	}
	return &TextAnalyzer{
		classifier: classifier,
		summarizer: summarizer,
		logger:     logger,
	}
}

func (a *TextAnalyzer) Analyze(ctx context.Context, text string) (Analysis, error) {
	sentiment, err := a.classifier.ClassifySentiment(ctx, text)
	if err != nil {
		return Analysis{}, fmt.Errorf("classify sentiment: %w", err)
	}

	words := etc.WordCount(text)
	summary := ShortTextSummary
	if words > ShortTextWordLimit {
		summary, err = a.summarizer.Summarize(ctx, text)
		if err != nil {
			return Analysis{}, fmt.Errorf("summarize: %w", err)
		}
		summary = strings.TrimSpace(summary)
	}

	a.logger.Debug(
		"analyzed",
		"words", words,
		"sentiment", sentiment.Label,
		"score", sentiment.Score,
	)

	return Analysis{
		Sentiment: NormalizeLabel(sentiment.Label),
		Score:     RoundScore(sentiment.Score),
		Summary:   summary,
	}, nil
}

// NormalizeLabel upper-cases a sentiment label.
func NormalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

// RoundScore clamps a confidence into [0,1] and rounds it to two decimals.
func RoundScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return math.Round(score*100) / 100
}

var _ Analyzer = (*TextAnalyzer)(nil)
