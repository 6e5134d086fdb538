package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/task"
	"github.com/cchalm/video-researcher/internal/thread"
	"github.com/cchalm/video-researcher/internal/transcript"
)

type turnRequest struct {
	Message string `json:"message"`
}

type threadResponse struct {
	ThreadID  string       `json:"thread_id"`
	Messages  []ai.Message `json:"messages"`
	Tasks     []task.Task  `json:"tasks"`
	CreatedAt string       `json:"created_at"`
	UpdatedAt string       `json:"updated_at"`
}

type tasksResponse struct {
	ThreadID string      `json:"thread_id"`
	Tasks    []task.Task `json:"tasks"`
	Summary  string      `json:"summary"`
	Counts   task.Counts `json:"counts"`
}

type threadListResponse struct {
	Threads []thread.Info `json:"threads"`
}

func newThreadResponse(snap *thread.Snapshot) threadResponse {
	messages := snap.Messages
	if messages == nil {
		messages = []ai.Message{}
	}
	tasks := snap.Tasks.Tasks
	if tasks == nil {
		tasks = []task.Task{}
	}
	return threadResponse{
		ThreadID:  snap.ThreadID,
		Messages:  messages,
		Tasks:     tasks,
		CreatedAt: snap.CreatedAt.Format(time.RFC3339),
		UpdatedAt: snap.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleThreadList(w http.ResponseWriter, r *http.Request) {
	infos, err := h.engine.ListThreads(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threadListResponse{Threads: infos})
}

func (h *handlers) handleThreadCreate(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.CreateThread(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newThreadResponse(snap))
}

func (h *handlers) handleThreadGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Thread(r.Context(), r.PathValue("thread_id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newThreadResponse(snap))
}

func (h *handlers) handleThreadDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteThread(r.Context(), r.PathValue("thread_id")); err != nil {
		writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleTurn(w http.ResponseWriter, r *http.Request) {
	var request turnRequest
	if err := decodeJSONBody(r, &request); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(request.Message) == "" {
		writeInvalidRequest(w, "message is required")
		return
	}

	ctx := r.Context()
	if h.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.turnTimeout)
		defer cancel()
	}

	result, err := h.engine.RunTurn(ctx, r.PathValue("thread_id"), request.Message)
	if err != nil {
		h.logger.Warn("turn request failed", "thread_id", r.PathValue("thread_id"), "error", err)
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) handleTasks(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	tasks, counts, err := h.engine.Tasks(r.Context(), threadID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasksResponse{
		ThreadID: threadID,
		Tasks:    tasks,
		Summary:  counts.String(),
		Counts:   counts,
	})
}

func (h *handlers) handleTranscript(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Thread(r.Context(), r.PathValue("thread_id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	md, err := transcript.Render(*snap)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(md))
}
