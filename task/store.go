package task

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned for ids the store has never seen.
	ErrNotFound = errors.New("task not found")

	// ErrDuplicateID is returned when creating a task whose id already exists.
	ErrDuplicateID = errors.New("duplicate task id")

	// ErrAlreadyFinished is returned when a finished task is written again.
	ErrAlreadyFinished = errors.New("task already finished")
)

type entry struct {
	task Task
	done chan struct{}
}

// Store is the process-lifetime mapping from task id to task state. Tasks are
// never removed.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Create inserts a new task in processing state.
func (s *Store) Create(id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		return Task{}, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	e := &entry{
		task: Task{
			ID:        id,
			Status:    StatusProcessing,
			CreatedAt: s.now().UTC(),
		},
		done: make(chan struct{}),
	}
	s.entries[id] = e
	return e.task, nil
}

// Complete moves a processing task to completed with the given result.
func (s *Store) Complete(id string, result Result) error {
	return s.finish(id, func(t *Task) {
		score := result.SentimentScore
		t.Status = StatusCompleted
		t.Transcript = result.Transcript
		t.Sentiment = result.Sentiment
		t.SentimentScore = &score
		t.Summary = result.Summary
	})
}

// Fail moves a processing task to failed, recording the cause.
func (s *Store) Fail(id string, cause error) error {
	msg := "unknown error"
	if cause != nil && cause.Error() != "" {
		msg = cause.Error()
	}
	return s.finish(id, func(t *Task) {
		t.Status = StatusFailed
		t.Error = msg
	})
}

// finish applies the single allowed mutation of a task and signals waiters.
func (s *Store) finish(id string, apply func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.task.Status != StatusProcessing {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyFinished, id, e.task.Status)
	}

	apply(&e.task)
	e.task.FinishedAt = s.now().UTC()
	close(e.done)
	return nil
}

// Get returns a snapshot of the task.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return Task{}, false
	}
	return e.task.clone(), true
}

// Lookup is Get with unknown ids reported as a synthetic not_found task.
func (s *Store) Lookup(id string) Task {
	t, ok := s.Get(id)
	if !ok {
		return Task{ID: id, Status: StatusNotFound}
	}
	return t
}

// Done returns a channel closed once the task reaches a terminal state.
func (s *Store) Done(id string) (<-chan struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.done, nil
}

// Len counts stored tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
