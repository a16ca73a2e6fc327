package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wyfcoding/stocktrading/internal/marketdata/domain"
	"github.com/wyfcoding/stocktrading/pkg/logger"
)

const tokenPath = "/oauth2/tokenP"

// TokenManager 管理上游访问令牌的获取、刷新与持久化。
// 并发请求令牌时通过 single-flight 合并，保证同一时刻只有一次凭证调用。
type TokenManager struct {
	baseURL    string
	appKey     string
	appSecret  string
	httpClient *http.Client
	store      domain.TokenStore
	refreshGap time.Duration
	now        func() time.Time
	onRefresh  func()

	group singleflight.Group

	mu    sync.RWMutex
	token *domain.UpstreamToken
}

// TokenManagerOption 可选配置
type TokenManagerOption func(*TokenManager)

// WithTokenClock 注入时钟，测试用
func WithTokenClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) { m.now = now }
}

// WithRefreshHook 刷新成功回调，用于指标上报
func WithRefreshHook(fn func()) TokenManagerOption {
	return func(m *TokenManager) { m.onRefresh = fn }
}

// NewTokenManager 创建令牌管理器，并尝试从 store 恢复未过期的令牌
func NewTokenManager(baseURL, appKey, appSecret string, store domain.TokenStore, refreshGap time.Duration, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{
		baseURL:    baseURL,
		appKey:     appKey,
		appSecret:  appSecret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		store:      store,
		refreshGap: refreshGap,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if tok, err := store.Load(ctx); err != nil {
			logger.Warn(ctx, "加载持久化令牌失败", "error", err)
		} else if tok.Valid(m.now()) {
			m.token = tok
			logger.Info(ctx, "恢复持久化令牌", "expires_at", tok.ExpiresAt)
		}
	}
	return m
}

// Token 返回当前有效的访问令牌，必要时同步刷新
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	tok := m.token
	m.mu.RUnlock()
	if tok.Valid(m.now()) {
		return tok.AccessToken, nil
	}
	return m.refresh(ctx)
}

// ForceRefresh 丢弃当前令牌并立即换发新令牌。
// 上游返回认证失效时由客户端调用，随后重试原请求一次。
func (m *TokenManager) ForceRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
	return m.refresh(ctx)
}

// Run 后台定期刷新，默认周期略短于上游 24 小时有效期。ctx 取消时退出。
func (m *TokenManager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.refreshGap)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.ForceRefresh(ctx); err != nil {
				logger.Error(ctx, "后台刷新令牌失败", "error", err)
			}
		}
	}
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	v, err, _ := m.group.Do("token", func() (any, error) {
		// 合并窗口内可能已有一次刷新完成
		m.mu.RLock()
		tok := m.token
		m.mu.RUnlock()
		if tok.Valid(m.now()) {
			return tok.AccessToken, nil
		}

		fresh, err := m.issue(ctx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.token = fresh
		m.mu.Unlock()

		if m.store != nil {
			if err := m.store.Save(ctx, fresh); err != nil {
				logger.Warn(ctx, "持久化令牌失败", "error", err)
			}
		}
		if m.onRefresh != nil {
			m.onRefresh()
		}
		logger.Info(ctx, "访问令牌已刷新", "expires_at", fresh.ExpiresAt)
		return fresh.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *TokenManager) issue(ctx context.Context) (*domain.UpstreamToken, error) {
	body, _ := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     m.appKey,
		"appsecret":  m.appSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+tokenPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("构造令牌请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: 换发令牌返回 %d", domain.ErrUnavailable, resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: 解析令牌响应失败: %v", domain.ErrUnavailable, err)
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("%w: 令牌响应为空", domain.ErrUnavailable)
	}
	return &domain.UpstreamToken{
		AccessToken: payload.AccessToken,
		ExpiresAt:   m.now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}
