package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"node.town/callsense/llm"
	"node.town/callsense/stt"
)

// Runner is the background processor. Every submitted task runs on its own
// goroutine; the runner owns the temporary audio file from Submit until the
// task finishes.
type Runner struct {
	store       *Store
	transcriber stt.Transcriber
	analyzer    llm.Analyzer
	logger      *log.Logger
	timeout     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
}

func NewRunner(
	store *Store,
	transcriber stt.Transcriber,
	analyzer llm.Analyzer,
	logger *log.Logger,
) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:       store,
		transcriber: transcriber,
		analyzer:    analyzer,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetTimeout bounds each task's model calls. Zero means no limit.
func (r *Runner) SetTimeout(timeout time.Duration) {
	r.timeout = timeout
}

// Submit schedules processing of an already created task and returns at
// once. The returned channel is closed after the task's state is final and
// its audio file is gone.
func (r *Runner) Submit(id, audioPath string) <-chan struct{} {
	done := make(chan struct{})
	r.wg.Go(func() {
		defer close(done)
		r.process(id, audioPath)
	})
	return done
}

// Shutdown cancels in-flight tasks and waits for them to record their state.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) process(id, audioPath string) {
	logger := r.logger.With("task", id)
	start := time.Now()

	ctx, cancel := r.taskContext()
	defer cancel()

	result, err := r.execute(ctx, logger, audioPath)
	if err != nil {
		logger.Error("failed", "error", err, "elapsed", time.Since(start))
		if err := r.store.Fail(id, err); err != nil {
			logger.Error("record failure", "error", err)
		}
		return
	}

	if err := r.store.Complete(id, result); err != nil {
		logger.Error("record result", "error", err)
		return
	}
	logger.Info(
		"completed",
		"sentiment", result.Sentiment,
		"score", result.SentimentScore,
		"elapsed", time.Since(start),
	)
}

// execute runs the model calls. The audio file is removed before execute
// returns, whatever the outcome, so observers of a terminal state never see
// a leftover file.
func (r *Runner) execute(
	ctx context.Context,
	logger *log.Logger,
	audioPath string,
) (result Result, err error) {
	defer removeAudio(logger, audioPath)

	var pc panics.Catcher
	pc.Try(func() {
		result, err = r.analyzeAudio(ctx, logger, audioPath)
	})
	if recovered := pc.Recovered(); recovered != nil {
		return Result{}, fmt.Errorf("panic during processing: %w", recovered.AsError())
	}
	return result, err
}

func (r *Runner) analyzeAudio(
	ctx context.Context,
	logger *log.Logger,
	audioPath string,
) (Result, error) {
	logger.Debug("transcribing", "path", audioPath)
	raw, err := r.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe: %w", err)
	}
	transcript := stt.Normalize(raw)

	logger.Debug("analyzing", "chars", len(transcript))
	analysis, err := r.analyzer.Analyze(ctx, transcript)
	if err != nil {
		return Result{}, fmt.Errorf("analyze: %w", err)
	}

	return Result{
		Transcript:     transcript,
		Sentiment:      analysis.Sentiment,
		SentimentScore: analysis.Score,
		Summary:        analysis.Summary,
	}, nil
}

func (r *Runner) taskContext() (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(r.ctx, r.timeout)
	}
	return context.WithCancel(r.ctx)
}

func removeAudio(logger *log.Logger, audioPath string) {
	err := os.Remove(audioPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("remove audio", "path", audioPath, "error", err)
	}
}
