// Package server exposes the research engine as a JSON HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cchalm/video-researcher/internal/engine"
	"github.com/cchalm/video-researcher/internal/task"
	"github.com/cchalm/video-researcher/internal/thread"
)

// Engine is the subset of engine.Runner the API serves
type Engine interface {
	CreateThread(ctx context.Context) (*thread.Snapshot, error)
	RunTurn(ctx context.Context, threadID, text string) (*engine.TurnResult, error)
	Thread(ctx context.Context, threadID string) (*thread.Snapshot, error)
	Tasks(ctx context.Context, threadID string) ([]task.Task, task.Counts, error)
	ListThreads(ctx context.Context) ([]thread.Info, error)
	DeleteThread(ctx context.Context, threadID string) error
}

var _ Engine = (*engine.Runner)(nil)

type handlers struct {
	engine      Engine
	turnTimeout time.Duration
	logger      *slog.Logger
}

type Option func(*handlers)

// WithTurnTimeout bounds how long a turn request may run. Zero means the request context alone bounds it
func WithTurnTimeout(d time.Duration) Option {
	return func(h *handlers) { h.turnTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *handlers) { h.logger = l }
}

// NewRouter returns the API handler. /metrics serves the default Prometheus registry, which the telemetry
// package's exporter registers with
func NewRouter(e Engine, opts ...Option) http.Handler {
	h := &handlers{engine: e, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/threads", h.handleThreadList)
	mux.HandleFunc("POST /v1/threads", h.handleThreadCreate)
	mux.HandleFunc("GET /v1/threads/{thread_id}", h.handleThreadGet)
	mux.HandleFunc("DELETE /v1/threads/{thread_id}", h.handleThreadDelete)
	mux.HandleFunc("POST /v1/threads/{thread_id}/turns", h.handleTurn)
	mux.HandleFunc("GET /v1/threads/{thread_id}/tasks", h.handleTasks)
	mux.HandleFunc("GET /v1/threads/{thread_id}/transcript", h.handleTranscript)
	return h.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (h *handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug("http request",
			"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
