// Package redis 行情服务的 Redis 持久化：上游令牌跨进程重启恢复
package redis

import (
	"context"
	"time"

	"github.com/wyfcoding/stocktrading/internal/marketdata/domain"
	pkgcache "github.com/wyfcoding/stocktrading/pkg/cache"
)

const tokenKey = "marketdata:upstream:token"

// TokenStore 基于 Redis 的令牌存储，实现 domain.TokenStore
type TokenStore struct {
	cache *pkgcache.RedisCache
}

// NewTokenStore 创建令牌存储
func NewTokenStore(cache *pkgcache.RedisCache) *TokenStore {
	return &TokenStore{cache: cache}
}

// Load 读取持久化令牌；键不存在时返回空令牌而非错误
func (s *TokenStore) Load(ctx context.Context) (*domain.UpstreamToken, error) {
	var token domain.UpstreamToken
	if err := s.cache.GetJSON(ctx, tokenKey, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Save 写入令牌，过期时间与令牌一致
func (s *TokenStore) Save(ctx context.Context, token *domain.UpstreamToken) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.cache.SetJSON(ctx, tokenKey, token, ttl)
}
