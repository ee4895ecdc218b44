package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"node.town/callsense/etc"
	"node.town/callsense/llm"
	"node.town/callsense/stt"
	"node.town/callsense/task"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Transcribe and analyze a recording locally without a server",
	Args:  cobra.ExactArgs(1),
	Run:   runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) {
	l := createLoggers()

	cfg, err := loadConfig()
	if err != nil {
		l.main.Fatal("load config", "error", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := newBackends(ctx, cfg, l.hear, l.talk)
	if err != nil {
		l.main.Fatal("create backends", "error", err)
	}
	defer b.Close()

	result, err := analyzeLocal(ctx, b.transcriber, b.analyzer, args[0], l.task)
	if err != nil {
		l.main.Fatal("analyze", "file", args[0], "error", err)
	}

	printTask(os.Stdout, result)
}

// analyzeLocal runs one task through the same store and runner the server
// uses. The runner consumes a private copy so the caller's file survives.
func analyzeLocal(
	ctx context.Context,
	transcriber stt.Transcriber,
	analyzer llm.Analyzer,
	path string,
	logger *log.Logger,
) (task.Task, error) {
	dir, err := os.MkdirTemp("", "callsense-")
	if err != nil {
		return task.Task{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	id := task.NewID()
	audioPath := filepath.Join(dir, id+"_"+etc.SafeFilename(filepath.Base(path)))
	if err := copyFile(path, audioPath); err != nil {
		return task.Task{}, err
	}

	store := task.NewStore()
	if _, err := store.Create(id); err != nil {
		return task.Task{}, err
	}

	runner := task.NewRunner(store, transcriber, analyzer, logger)
	select {
	case <-runner.Submit(id, audioPath):
	case <-ctx.Done():
		if err := runner.Shutdown(context.Background()); err != nil {
			return task.Task{}, err
		}
	}
	return store.Lookup(id), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy audio: %w", err)
	}
	return out.Close()
}
