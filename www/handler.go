package www

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"node.town/callsense/etc"
	"node.town/callsense/task"
)

// DefaultMaxUploadBytes caps request bodies on the upload endpoint.
const DefaultMaxUploadBytes = 100 << 20

// Scheduler starts background processing of a stored task.
type Scheduler interface {
	Submit(id, audioPath string) <-chan struct{}
}

type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	AllowedOrigins []string
}

type Handler struct {
	store          *task.Store
	runner         Scheduler
	logger         *log.Logger
	uploadDir      string
	maxUploadBytes int64
	upgrader       websocket.Upgrader
}

func NewHandler(
	store *task.Store,
	runner Scheduler,
	logger *log.Logger,
	opts Options,
) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	if opts.UploadDir == "" {
		opts.UploadDir = filepath.Join(os.TempDir(), "callsense")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	origins := slices.Clone(opts.AllowedOrigins)
	return &Handler{
		store:          store,
		runner:         runner,
		logger:         logger,
		uploadDir:      opts.UploadDir,
		maxUploadBytes: opts.MaxUploadBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(origins, origin)
			},
		},
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze-call", h.analyzeCall)
		r.Get("/results/{taskID}", h.results)
		r.Get("/results/{taskID}/watch", h.watch)
	})
}

type analyzeResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

func (h *Handler) analyzeCall(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("missing file: %v", err))
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	id := task.NewID()
	path, err := h.saveUpload(id, header.Filename, file)
	if err != nil {
		h.logger.Error("save upload", "task", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	if _, err := h.store.Create(id); err != nil {
		h.logger.Error("create task", "task", id, "error", err)
		_ = os.Remove(path)
		h.writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.runner.Submit(id, path)
	h.logger.Info("accepted", "task", id, "file", header.Filename, "bytes", header.Size)

	h.writeJSON(w, http.StatusAccepted, analyzeResponse{
		Message: "Analysis started",
		TaskID:  id,
	})
}

// saveUpload writes the upload to a file name no other task can share.
func (h *Handler) saveUpload(id, filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o700); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(h.uploadDir, id+"_"+etc.SafeFilename(filename))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Lookup(chi.URLParam(r, "taskID")))
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "ok")
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", "error", err)
	}
}
