package www

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const DefaultShutdownGrace = 30 * time.Second

var DefaultAllowedOrigins = []string{
	"http://localhost",
	"http://localhost:3000",
}

// NewRouter mounts the handler behind request logging, panic recovery and
// the CORS policy for the given origins.
func NewRouter(h *Handler, origins []string, logger *log.Logger) *chi.Mux {
	if logger == nil {
		logger = log.Default()
	}
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  logger.StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel}),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h.Routes(r)
	return r
}

// Serve runs the HTTP server on ln until ctx is cancelled, then shuts it
// down, giving open requests up to grace to finish.
func Serve(
	ctx context.Context,
	ln net.Listener,
	handler http.Handler,
	grace time.Duration,
	logger *log.Logger,
) error {
	if logger == nil {
		logger = log.Default()
	}
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	logger.Info("listening", "url", fmt.Sprintf("http://%s", ln.Addr()))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "grace", grace)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
