package tools

import (
	"github.com/cchalm/video-researcher/internal/tavily"
	"github.com/cchalm/video-researcher/internal/tiktok"
)

// Dependencies are the upstream clients behind the default tool set. A nil client leaves its tools registered but
// reporting a missing API key
type Dependencies struct {
	TikTok           *tiktok.Client
	Tavily           *tavily.Client
	MaxSearchResults int
	TikTokMaxPages   int
}

// DefaultTools returns every capability of the research agent
func DefaultTools(deps Dependencies) []Tool {
	searchTool := &TikTokHashtagSearchTool{}
	postsTool := &TikTokHashtagPostsTool{MaxPages: deps.TikTokMaxPages}
	if deps.TikTok != nil {
		searchTool.Client = deps.TikTok
		postsTool.Client = deps.TikTok
	}
	tavilyTool := &TavilySearchTool{MaxResults: deps.MaxSearchResults}
	if deps.Tavily != nil {
		tavilyTool.Client = deps.Tavily
	}

	return []Tool{
		&TaskManagerTool{},
		tavilyTool,
		searchTool,
		postsTool,
	}
}
