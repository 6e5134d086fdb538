package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cchalm/video-researcher/internal/ai"
	"github.com/cchalm/video-researcher/internal/tiktok"
)

const (
	TikTokHashtagSearchToolName = "tiktok_hashtag_search"
	TikTokHashtagPostsToolName  = "tiktok_hashtag_posts"

	defaultPostsCount = 50
	// maxPostsPages bounds pagination regardless of the requested count
	maxPostsPages = 50

	missingRapidAPIKey = "RAPIDAPI_KEY environment variable not set"
)

// TikTokClient is the subset of the scraper client the TikTok tools use
type TikTokClient interface {
	HashtagInfo(ctx context.Context, hashtag string) (*tiktok.HashtagInfo, error)
	Posts(ctx context.Context, challengeID string, target int, maxPages int) (*tiktok.Posts, error)
}

// TikTokHashtagSearchTool looks up analytics for a hashtag. A nil client means no API key is configured
type TikTokHashtagSearchTool struct {
	Client TikTokClient
}

type hashtagSearchInput struct {
	Hashtag string `json:"hashtag"`
}

func (t *TikTokHashtagSearchTool) Definition() ai.ToolDefinition {
	return ai.ToolDefinition{
		Name: TikTokHashtagSearchToolName,
		Description: "Look up a TikTok hashtag: how many users have used it, total views, its type and " +
			"characteristics, and the challenge_id needed to fetch its videos.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"hashtag": map[string]any{
					"type":        "string",
					"description": "The hashtag name, with or without the leading #",
				},
			},
			"required": []string{"hashtag"},
		},
	}
}

func (t *TikTokHashtagSearchTool) Run(ctx context.Context, args json.RawMessage, _ *ToolContext) (Result, error) {
	if t.Client == nil {
		return Failure(missingRapidAPIKey), nil
	}

	var input hashtagSearchInput
	if err := parseInput(args, &input); err != nil {
		return Result{}, err
	}
	hashtag := strings.TrimLeft(strings.TrimSpace(input.Hashtag), "#")
	if hashtag == "" {
		return Result{}, NewToolInputError(fmt.Errorf("hashtag is required"))
	}

	info, err := t.Client.HashtagInfo(ctx, hashtag)
	if errors.Is(err, tiktok.ErrNotFound) {
		return Failuref(map[string]any{"hashtag": hashtag}, "Hashtag '%s' not found", hashtag), nil
	} else if err != nil {
		return Failuref(map[string]any{"hashtag": hashtag}, "Failed to search TikTok hashtag: %s", err), nil
	}

	description := info.Desc
	if description == "" {
		description = "No description available"
	}
	return Success(map[string]any{
		"hashtag":      info.Name,
		"challenge_id": info.ID,
		"description":  description,
		"stats": map[string]any{
			"user_count": info.UserCount,
			"view_count": info.ViewCount,
		},
		"characteristics": map[string]any{
			"is_challenge":    info.IsChallenge,
			"is_commerce":     info.IsCommerce,
			"is_pgcshow":      info.IsPGCShow,
			"is_strong_music": info.IsStrongMusic,
			"type":            info.Type,
		},
		"cover": info.Cover,
	}, nil), nil
}

// TikTokHashtagPostsTool fetches videos of a hashtag challenge, paging automatically
type TikTokHashtagPostsTool struct {
	Client TikTokClient
	// MaxPages further caps pagination when positive
	MaxPages int
}

type hashtagPostsInput struct {
	ChallengeID flexibleID `json:"challenge_id"`
	Count       *int       `json:"count,omitempty"`
}

func (t *TikTokHashtagPostsTool) Definition() ai.ToolDefinition {
	return ai.ToolDefinition{
		Name: TikTokHashtagPostsToolName,
		Description: "Fetch videos from a TikTok hashtag challenge, with titles, authors, music, play/like/comment/share " +
			"counts and URLs. Pages through results automatically, so count may exceed 20. " +
			"Get the challenge_id from tiktok_hashtag_search first.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"challenge_id": map[string]any{
					"type":        "string",
					"description": "The hashtag challenge id",
				},
				"count": map[string]any{
					"type":        "integer",
					"description": "Number of videos to fetch (default 50)",
					"minimum":     1,
				},
			},
			"required": []string{"challenge_id"},
		},
	}
}

// maxPages computes the pagination bound for a requested count
func (t *TikTokHashtagPostsTool) maxPages(count int) int {
	pages := min(count/tiktok.MaxPageSize+1, maxPostsPages)
	if t.MaxPages > 0 {
		pages = min(pages, t.MaxPages)
	}
	return pages
}

func (t *TikTokHashtagPostsTool) Run(ctx context.Context, args json.RawMessage, _ *ToolContext) (Result, error) {
	if t.Client == nil {
		return Failure(missingRapidAPIKey), nil
	}

	var input hashtagPostsInput
	if err := parseInput(args, &input); err != nil {
		return Result{}, err
	}
	challengeID := strings.TrimSpace(string(input.ChallengeID))
	if challengeID == "" {
		return Result{}, NewToolInputError(fmt.Errorf("challenge_id is required"))
	}
	count := defaultPostsCount
	if input.Count != nil {
		count = max(*input.Count, 1)
	}

	posts, err := t.Client.Posts(ctx, challengeID, count, t.maxPages(count))
	extra := map[string]any{"challenge_id": challengeID}
	if errors.Is(err, tiktok.ErrNotFound) {
		return Failuref(extra, "No videos found for challenge_id '%s'", challengeID), nil
	} else if err != nil {
		return Failuref(extra, "Failed to get hashtag posts: %s", err), nil
	}

	videos := make([]map[string]any, 0, len(posts.Videos))
	for _, v := range posts.Videos {
		videos = append(videos, formatVideo(v))
	}

	extra["requested_count"] = count
	extra["video_count"] = len(videos)
	extra["total_fetched"] = posts.TotalFetched
	extra["has_more"] = posts.HasMore
	extra["next_cursor"] = posts.Cursor
	extra["message"] = fmt.Sprintf("Fetched %d videos from hashtag challenge (requested: %d)", len(videos), count)
	return Success(videos, extra), nil
}

func formatVideo(v tiktok.Video) map[string]any {
	author := map[string]any{"username": "unknown", "nickname": "unknown", "avatar": ""}
	if v.Author != nil {
		author = map[string]any{"username": v.Author.UniqueID, "nickname": v.Author.Nickname, "avatar": v.Author.Avatar}
	}
	music := map[string]any{"title": "", "author": "", "duration": 0, "original": false}
	if v.MusicInfo != nil {
		music = map[string]any{
			"title":    v.MusicInfo.Title,
			"author":   v.MusicInfo.Author,
			"duration": v.MusicInfo.Duration,
			"original": v.MusicInfo.Original,
		}
	}
	return map[string]any{
		"video_id":   v.VideoID,
		"title":      v.Title,
		"tiktok_url": v.URL(),
		"play_url":   v.Play,
		"cover_url":  v.Cover,
		"duration":   v.Duration,
		"author":     author,
		"stats": map[string]any{
			"play_count":    v.PlayCount,
			"like_count":    v.DiggCount,
			"comment_count": v.CommentCount,
			"share_count":   v.ShareCount,
			"collect_count": v.CollectCount,
		},
		"music":       music,
		"create_time": v.CreateTime,
		"is_top":      v.IsTop != 0,
	}
}
