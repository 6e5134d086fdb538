// Package tiktok is a client for the RapidAPI TikTok scraper.
package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cchalm/video-researcher/internal/transport"
)

const (
	DefaultBaseURL = "https://tiktok-scraper7.p.rapidapi.com"
	DefaultHost    = "tiktok-scraper7.p.rapidapi.com"

	// MaxPageSize is the most videos the posts endpoint returns per call
	MaxPageSize = 20
)

// ErrNotFound is returned when the API reports no data for the requested hashtag or challenge
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response or a non-zero application code from the scraper
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("tiktok api: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tiktok api: code %d: %s", e.Code, e.Message)
}

type Client struct {
	apiKey     string
	baseURL    string
	host       string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a scraper client. Requests go through a 429-aware transport and time out after timeout
func NewClient(apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		host:    DefaultHost,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport.WithRateLimiting(nil, transport.WithLogger(c.logger)),
		}
	}
	return c
}

// HashtagInfo looks up a hashtag challenge by name. A leading '#' is ignored
func (c *Client) HashtagInfo(ctx context.Context, hashtag string) (*HashtagInfo, error) {
	name := strings.TrimLeft(strings.TrimSpace(hashtag), "#")
	if name == "" {
		return nil, fmt.Errorf("hashtag is empty")
	}

	var env apiEnvelope[HashtagInfo]
	if err := c.get(ctx, "/challenge/info", url.Values{"challenge_name": {name}}, &env); err != nil {
		return nil, err
	}
	if env.Code != 0 {
		return nil, &APIError{Code: env.Code, Message: env.Msg}
	}
	if env.Data == nil || env.Data.ID == "" {
		return nil, fmt.Errorf("hashtag %q: %w", name, ErrNotFound)
	}
	return env.Data, nil
}

// PostsPage fetches a single page of a challenge's videos. count is clamped to MaxPageSize
func (c *Client) PostsPage(ctx context.Context, challengeID string, count int, cursor int64) (*Posts, error) {
	count = max(1, min(count, MaxPageSize))
	params := url.Values{
		"challenge_id": {challengeID},
		"count":        {strconv.Itoa(count)},
		"cursor":       {strconv.FormatInt(cursor, 10)},
	}

	var env apiEnvelope[postsData]
	if err := c.get(ctx, "/challenge/posts", params, &env); err != nil {
		return nil, err
	}
	if env.Code != 0 {
		return nil, &APIError{Code: env.Code, Message: env.Msg}
	}
	if env.Data == nil {
		return &Posts{Cursor: cursor}, nil
	}
	return &Posts{
		Videos:       env.Data.Videos,
		Cursor:       env.Data.Cursor,
		HasMore:      env.Data.HasMore,
		TotalFetched: len(env.Data.Videos),
	}, nil
}

// Posts pages through a challenge until target videos are collected, the API runs out, or maxPages calls were made.
// HasMore on the result reports whether more videos could be fetched from Cursor.
func (c *Client) Posts(ctx context.Context, challengeID string, target int, maxPages int) (*Posts, error) {
	target = max(target, 1)
	result := &Posts{}
	pages := 0
	apiHasMore := true

	for len(result.Videos) < target && pages < maxPages {
		page, err := c.PostsPage(ctx, challengeID, target-len(result.Videos), result.Cursor)
		if err != nil {
			if pages == 0 {
				return nil, err
			}
			c.logger.Warn("stopping pagination after page error", "challenge_id", challengeID, "pages", pages, "error", err)
			break
		}
		if len(page.Videos) == 0 {
			apiHasMore = false
			break
		}

		result.Videos = append(result.Videos, page.Videos...)
		result.Cursor = page.Cursor
		apiHasMore = page.HasMore
		pages++

		if !page.HasMore {
			break
		}
	}

	if len(result.Videos) == 0 {
		return nil, fmt.Errorf("posts for challenge %q: %w", challengeID, ErrNotFound)
	}
	result.TotalFetched = len(result.Videos)
	result.HasMore = apiHasMore
	return result, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := c.baseURL + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.host)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &m) == nil && m.Message != "" {
		return m.Message
	}
	return "API request failed"
}
