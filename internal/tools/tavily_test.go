package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/tavily"
)

type fakeTavily struct {
	resp *tavily.SearchResponse
	err  error
	got  tavily.SearchRequest
}

func (f *fakeTavily) Search(_ context.Context, req tavily.SearchRequest) (*tavily.SearchResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestTavilySearch(t *testing.T) {
	client := &fakeTavily{resp: &tavily.SearchResponse{
		Answer:  "Short videos dominate.",
		Results: []tavily.Result{{Title: "Report", URL: "https://example.com/report"}},
	}}
	registry := newTestRegistry(t, &TavilySearchTool{Client: client, MaxResults: 7})

	got := decodeResult(t, registry.ProcessToolCall(context.Background(),
		ai.ToolCall{Name: TavilySearchToolName, Arguments: `{"query":" video trends 2025 "}`}, nil))

	assert.Equal(t, "video trends 2025", client.got.Query)
	assert.Equal(t, 7, client.got.MaxResults)
	require.Equal(t, true, got["success"])
	assert.Equal(t, "Short videos dominate.", got["answer"])
	assert.Len(t, got["data"], 1)
}

func TestTavilySearch_UpstreamError(t *testing.T) {
	registry := newTestRegistry(t, &TavilySearchTool{Client: &fakeTavily{err: errors.New("tavily api: http 401")}})

	result := registry.ProcessToolCall(context.Background(),
		ai.ToolCall{Name: TavilySearchToolName, Arguments: `{"query":"x"}`}, nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "http 401")
}
