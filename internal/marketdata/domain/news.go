package domain

import "time"

// NewsItem 个股新闻条目，来自上游，只经缓存不落库
type NewsItem struct {
	Symbol      string    `json:"symbol"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}
