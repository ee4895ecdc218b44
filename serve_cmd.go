package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"node.town/callsense/task"
	"node.town/callsense/www"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the call analysis HTTP service",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8000, "Port to run the HTTP server on")
	serveCmd.Flags().String("upload-dir", "", "Directory for uploaded audio")
	viper.BindPFlag("http_port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("upload_dir", serveCmd.Flags().Lookup("upload-dir"))
}

func runServe(cmd *cobra.Command, args []string) {
	l := createLoggers()

	cfg, err := loadConfig()
	if err != nil {
		l.main.Fatal("load config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := newBackends(ctx, cfg, l.hear, l.talk)
	if err != nil {
		l.main.Fatal("create backends", "error", err)
	}
	defer b.Close()

	store := task.NewStore()
	runner := task.NewRunner(store, b.transcriber, b.analyzer, l.task)
	runner.SetTimeout(cfg.TaskTimeout)

	handler := www.NewHandler(store, runner, l.http, www.Options{
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		AllowedOrigins: cfg.CORSOrigins,
	})
	router := www.NewRouter(handler, cfg.CORSOrigins, l.http)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
	if err != nil {
		l.main.Fatal("listen", "port", cfg.HTTPPort, "error", err)
	}

	l.main.Info(
		"serving",
		"transcriber", cfg.Transcriber,
		"analyzer", cfg.Analyzer,
		"uploads", cfg.UploadDir,
	)
	serveErr := www.Serve(ctx, ln, router, cfg.ShutdownTimeout, l.http)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		l.main.Error("wait for tasks", "tasks", store.Len(), "error", err)
	}

	if serveErr != nil {
		l.main.Fatal("serve", "error", serveErr)
	}
	l.main.Info("stopped")
}
