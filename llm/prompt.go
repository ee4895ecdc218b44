package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const SentimentPrompt = "You are a sentiment classifier for call transcripts. " +
	"Classify the overall sentiment of the transcript the user sends. " +
	"Answer with a JSON object and nothing else: " +
	`{"label": "POSITIVE" | "NEGATIVE" | "NEUTRAL", "score": <confidence between 0 and 1>}`

const SummaryPrompt = "You summarize call transcripts. " +
	"Write a single plain-text summary of the transcript the user sends, " +
	"between 15 and 50 words. Do not add a preamble."

// ErrMalformedSentiment is returned when a model answer cannot be read as a
// sentiment object.
var ErrMalformedSentiment = errors.New("malformed sentiment response")

// ParseSentiment reads a model's JSON sentiment answer, tolerating markdown
// code fences around it.
func ParseSentiment(raw string) (Sentiment, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out struct {
		Label     string   `json:"label"`
		Sentiment string   `json:"sentiment"`
		Score     *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return Sentiment{}, fmt.Errorf("%w: %v", ErrMalformedSentiment, err)
	}

	label := out.Label
	if label == "" {
		label = out.Sentiment
	}
	if label == "" || out.Score == nil {
		return Sentiment{}, fmt.Errorf("%w: missing label or score", ErrMalformedSentiment)
	}
	return Sentiment{Label: label, Score: *out.Score}, nil
}
