package tiktok

import "fmt"

// apiEnvelope is the wrapper every scraper endpoint responds with. A non-zero Code is an application-level failure
type apiEnvelope[T any] struct {
	Code          int     `json:"code"`
	Msg           string  `json:"msg"`
	ProcessedTime float64 `json:"processed_time"`
	Data          *T      `json:"data"`
}

// HashtagInfo describes a hashtag challenge
type HashtagInfo struct {
	ID            string `json:"id"`
	Name          string `json:"cha_name"`
	Desc          string `json:"desc"`
	UserCount     int64  `json:"user_count"`
	ViewCount     int64  `json:"view_count"`
	IsPGCShow     bool   `json:"is_pgcshow"`
	IsCommerce    bool   `json:"is_commerce"`
	IsChallenge   bool   `json:"is_challenge"`
	IsStrongMusic bool   `json:"is_strong_music"`
	Type          int    `json:"type"`
	Cover         string `json:"cover"`
}

type MusicInfo struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Play     string `json:"play"`
	Cover    string `json:"cover"`
	Author   string `json:"author"`
	Original bool   `json:"original"`
	Duration int    `json:"duration"`
	Album    string `json:"album"`
}

type VideoAuthor struct {
	ID       string `json:"id"`
	UniqueID string `json:"unique_id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

// Video is one post in a hashtag challenge
type Video struct {
	AwemeID       string       `json:"aweme_id"`
	VideoID       string       `json:"video_id"`
	Region        string       `json:"region"`
	Title         string       `json:"title"`
	Cover         string       `json:"cover"`
	Duration      int          `json:"duration"`
	Play          string       `json:"play"`
	Size          int64        `json:"size"`
	PlayCount     int64        `json:"play_count"`
	DiggCount     int64        `json:"digg_count"`
	CommentCount  int64        `json:"comment_count"`
	ShareCount    int64        `json:"share_count"`
	DownloadCount int64        `json:"download_count"`
	CollectCount  int64        `json:"collect_count"`
	CreateTime    int64        `json:"create_time"`
	MusicInfo     *MusicInfo   `json:"music_info"`
	Author        *VideoAuthor `json:"author"`
	IsTop         int          `json:"is_top"`
}

// URL returns the public web URL of the video, or "" if the author is unknown
func (v Video) URL() string {
	if v.Author == nil || v.Author.UniqueID == "" {
		return ""
	}
	return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", v.Author.UniqueID, v.VideoID)
}

type postsData struct {
	Videos  []Video `json:"videos"`
	Cursor  int64   `json:"cursor"`
	HasMore bool    `json:"hasMore"`
}

// Posts is a run of videos together with the cursor to continue from
type Posts struct {
	Videos       []Video
	Cursor       int64
	HasMore      bool
	TotalFetched int
}
