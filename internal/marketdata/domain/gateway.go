package domain

import (
	"context"
	"time"
)

// QuoteSource 上游行情网关接口，由 infrastructure 层实现
type QuoteSource interface {
	// FetchQuote 拉取单只证券的实时报价
	FetchQuote(ctx context.Context, symbol, exchange string) (*Quote, error)
	// FetchNews 拉取个股新闻标题列表
	FetchNews(ctx context.Context, symbol string) ([]NewsItem, error)
}

// UpstreamToken 上游访问令牌
type UpstreamToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid 令牌是否仍然可用。留 30 秒安全余量，避免在途请求携带刚好过期的令牌。
func (t *UpstreamToken) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Add(30 * time.Second).Before(t.ExpiresAt)
}

// TokenStore 令牌持久化接口，进程重启后恢复未过期令牌
type TokenStore interface {
	Load(ctx context.Context) (*UpstreamToken, error)
	Save(ctx context.Context, token *UpstreamToken) error
}
