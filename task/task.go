package task

import (
	"time"

	"node.town/callsense/etc"
)

// Status tracks the lifecycle of one uploaded call.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"

	// StatusNotFound is reported for unknown ids and is never stored.
	StatusNotFound Status = "not_found"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is the stored state of one upload-to-result unit of work. It is also
// the response body of the results endpoint.
type Task struct {
	ID             string    `json:"task_id"`
	Status         Status    `json:"status"`
	Transcript     string    `json:"transcript,omitempty"`
	Sentiment      string    `json:"sentiment,omitempty"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"-"`
	FinishedAt     time.Time `json:"-"`
}

// Result is what a successful run writes into a task.
type Result struct {
	Transcript     string
	Sentiment      string
	SentimentScore float64
	Summary        string
}

func NewID() string {
	return "task_" + etc.NewFreshID()
}

func (t Task) clone() Task {
	if t.SentimentScore != nil {
		score := *t.SentimentScore
		t.SentimentScore = &score
	}
	return t
}
