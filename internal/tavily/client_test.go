package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("tvly-test", 5*time.Second, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))

		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "short form video trends", req.Query)
		assert.Equal(t, 5, req.MaxResults)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"query":   req.Query,
			"answer":  "Vertical video keeps growing.",
			"results": []map[string]any{{"title": "Trends", "url": "https://example.com", "content": "...", "score": 0.9}},
		})
	})

	resp, err := client.Search(context.Background(), SearchRequest{Query: "short form video trends", MaxResults: 5})

	require.NoError(t, err)
	assert.Equal(t, "Vertical video keeps growing.", resp.Answer)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://example.com", resp.Results[0].URL)
}

func TestSearch_EmptyResultsNotNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query":"x"}`))
	})

	resp, err := client.Search(context.Background(), SearchRequest{Query: "x"})

	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestSearch_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"error":"Unauthorized: missing or invalid API key."}}`))
	})

	_, err := client.Search(context.Background(), SearchRequest{Query: "x"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "invalid API key")
}

func TestSearch_EmptyQuery(t *testing.T) {
	client := NewClient("k", time.Second)

	_, err := client.Search(context.Background(), SearchRequest{Query: "  "})

	assert.Error(t, err)
}
