package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/tavily"
)

const TavilySearchToolName = "tavily_search"

type TavilyClient interface {
	Search(ctx context.Context, req tavily.SearchRequest) (*tavily.SearchResponse, error)
}

// TavilySearchTool runs general web searches. A nil client means no API key is configured
type TavilySearchTool struct {
	Client     TavilyClient
	MaxResults int
}

type tavilySearchInput struct {
	Query string `json:"query"`
}

func (t *TavilySearchTool) Definition() ai.ToolDefinition {
	return ai.ToolDefinition{
		Name: TavilySearchToolName,
		Description: "Search the web for comprehensive, accurate and trusted results. " +
			"Useful for current events and general information about videos, creators and platforms.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *TavilySearchTool) Run(ctx context.Context, args json.RawMessage, _ *ToolContext) (Result, error) {
	if t.Client == nil {
		return Failure("TAVILY_API_KEY environment variable not set"), nil
	}

	var input tavilySearchInput
	if err := parseInput(args, &input); err != nil {
		return Result{}, err
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return Result{}, NewToolInputError(fmt.Errorf("query is required"))
	}

	resp, err := t.Client.Search(ctx, tavily.SearchRequest{
		Query:         query,
		MaxResults:    t.MaxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("search for %q: %w", query, err)
	}

	extra := map[string]any{"query": query}
	if resp.Answer != "" {
		extra["answer"] = resp.Answer
	}
	return Success(resp.Results, extra), nil
}
