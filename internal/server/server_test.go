package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/cchalm/video-researcher/internal/agent"
	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/ai/aitest"
	"github.com/cchalm/video-researcher/internal/engine"
	"github.com/cchalm/video-researcher/internal/telemetry"
	"github.com/cchalm/video-researcher/internal/thread"
	"github.com/cchalm/video-researcher/internal/tools"
)

func newTestServer(t *testing.T, steps ...aitest.Step) *httptest.Server {
	t.Helper()
	registry, err := tools.NewToolRegistry([]tools.Tool{&tools.TaskManagerTool{}})
	require.NoError(t, err)
	metrics, err := telemetry.NewMetrics(noop.NewMeterProvider())
	require.NoError(t, err)

	graph := agent.NewGraph(aitest.NewScriptedModel(steps...), registry,
		agent.WithMetrics(metrics),
		agent.WithSystemPrompt(func(time.Time) (string, error) { return "system", nil }),
	)
	runner := engine.NewRunner(graph, thread.NewMemoryStore(), engine.WithMetrics(metrics))

	srv := httptest.NewServer(NewRouter(runner, WithTurnTimeout(5*time.Second)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp, decoded
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected an error body, got %v", body)
	return e["code"].(string)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestThreadLifecycle(t *testing.T) {
	srv := newTestServer(t,
		aitest.CallTools("", ai.ToolCall{ID: "plan", Name: "task_manager",
			Arguments: `{"tasks":[{"description":"Search #cooking","priority":"high"}]}`}),
		aitest.Reply("I planned one task."),
	)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/v1/threads", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	threadID := created["thread_id"].(string)
	assert.Equal(t, []any{}, created["messages"])
	assert.Equal(t, []any{}, created["tasks"])

	resp, turn := doJSON(t, http.MethodPost, srv.URL+"/v1/threads/"+threadID+"/turns", `{"message":"plan cooking research"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "I planned one task.", turn["final_answer"])
	assert.Equal(t, float64(2), turn["steps"])
	assert.Equal(t, false, turn["budget_exhausted"])

	resp, tasks := doJSON(t, http.MethodGet, srv.URL+"/v1/threads/"+threadID+"/tasks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1 task: 1 pending, 0 in progress, 0 completed (0.0% complete)", tasks["summary"])
	require.Len(t, tasks["tasks"], 1)

	resp, got := doJSON(t, http.MethodGet, srv.URL+"/v1/threads/"+threadID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, got["messages"], 4)

	resp, list := doJSON(t, http.MethodGet, srv.URL+"/v1/threads", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list["threads"], 1)

	mdResp, err := http.Get(srv.URL + "/v1/threads/" + threadID + "/transcript")
	require.NoError(t, err)
	md, err := io.ReadAll(mdResp.Body)
	mdResp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, mdResp.StatusCode)
	assert.Contains(t, string(md), "I planned one task.")

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/threads/"+threadID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/threads/"+threadID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, errorCodeNotFound, errorCode(t, body))
}

func TestTurn_UnknownThreadIsCreated(t *testing.T) {
	srv := newTestServer(t, aitest.Reply("hello"))

	resp, turn := doJSON(t, http.MethodPost, srv.URL+"/v1/threads/fresh-thread/turns", `{"message":"hi"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "fresh-thread", turn["thread_id"])
}

func TestTurn_InvalidRequests(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name, path, body string
	}{
		{"missing body", "/v1/threads/t1/turns", ""},
		{"blank message", "/v1/threads/t1/turns", `{"message":"  "}`},
		{"unknown field", "/v1/threads/t1/turns", `{"message":"hi","temperature":2}`},
		{"two objects", "/v1/threads/t1/turns", `{"message":"hi"}{"message":"again"}`},
		{"bad thread id", "/v1/threads/bad.id/turns", `{"message":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, srv.URL+tt.path, tt.body)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, errorCodeInvalidRequest, errorCode(t, body))
		})
	}
}

func TestTurn_ModelFailure(t *testing.T) {
	srv := newTestServer(t, aitest.Fail(assert.AnError))

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/threads/t1/turns", `{"message":"hi"}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, errorCodeRuntime, errorCode(t, body))

	// Nothing was persisted
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/threads/t1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteMissingThread(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodDelete, srv.URL+"/v1/threads/nope", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, errorCodeNotFound, errorCode(t, body))
}

func TestMapError(t *testing.T) {
	status, code := mapError(engine.ErrThreadBusy)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, errorCodeConflict, code)

	status, _ = mapError(context.DeadlineExceeded)
	assert.Equal(t, http.StatusGatewayTimeout, status)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, listener, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}), testLogger())
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusTeapot
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
