package kis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/stocktrading/internal/marketdata/domain"
)

type memTokenStore struct {
	mu    sync.Mutex
	token *domain.UpstreamToken
	saves int
}

func (s *memTokenStore) Load(ctx context.Context) (*domain.UpstreamToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return &domain.UpstreamToken{}, nil
	}
	return s.token, nil
}

func (s *memTokenStore) Save(ctx context.Context, token *domain.UpstreamToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.saves++
	return nil
}

func writeToken(w http.ResponseWriter, token string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"expires_in":   86400,
	})
}

func writeDomesticQuote(w http.ResponseWriter, price string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"rt_cd": "0",
		"output": map[string]string{
			"stck_prpr": price,
			"prdy_vrss": "500",
			"prdy_ctrt": "0.68",
		},
	})
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tm := NewTokenManager(srv.URL, "key", "secret", &memTokenStore{}, 23*time.Hour)
	return NewClient(srv.URL, "key", "secret", tm, 2*time.Second), srv
}

func TestTokenRefreshSingleFlight(t *testing.T) {
	var tokenCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, tokenPath, r.URL.Path)
		atomic.AddInt32(&tokenCalls, 1)
		time.Sleep(50 * time.Millisecond)
		writeToken(w, "tok-1")
	}))
	defer srv.Close()

	tm := NewTokenManager(srv.URL, "key", "secret", &memTokenStore{}, 23*time.Hour)

	const n = 10
	var wg sync.WaitGroup
	tokens := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = tm.Token(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok-1", tokens[i])
	}
}

func TestTokenRestoredFromStore(t *testing.T) {
	store := &memTokenStore{token: &domain.UpstreamToken{
		AccessToken: "persisted",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	tm := NewTokenManager("http://unused", "key", "secret", store, 23*time.Hour)

	tok, err := tm.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "persisted", tok)
}

func TestFetchQuoteAuthExpiredRetriesOnce(t *testing.T) {
	var quoteCalls, tokenCalls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case tokenPath:
			writeToken(w, "tok-"+string(rune('0'+atomic.AddInt32(&tokenCalls, 1))))
		case domesticQuotePath:
			// 首次携带旧令牌返回 401，刷新后放行
			if atomic.AddInt32(&quoteCalls, 1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeDomesticQuote(w, "74300")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	quote, err := c.FetchQuote(context.Background(), "005930", "")
	require.NoError(t, err)
	assert.Equal(t, "74300", quote.Price.String())
	assert.Equal(t, domain.CurrencyKRW, quote.Currency)
	assert.Equal(t, domain.ExchangeKRX, quote.Exchange)
	assert.Equal(t, int32(2), atomic.LoadInt32(&quoteCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls))
}

func TestFetchQuoteAuthExpiredGivesUpAfterRetry(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			writeToken(w, "tok")
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.FetchQuote(context.Background(), "005930", "")
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
}

func TestFetchQuoteRateLimited(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			writeToken(w, "tok")
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.FetchQuote(context.Background(), "005930", "")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestFetchQuoteBusinessRateLimitCode(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			writeToken(w, "tok")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rt_cd":  "1",
			"msg_cd": msgCodeRateLimited,
			"msg1":   "초당 거래건수를 초과하였습니다",
		})
	}))

	_, err := c.FetchQuote(context.Background(), "005930", "")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestFetchQuoteSymbolNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			writeToken(w, "tok")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rt_cd":  "1",
			"msg_cd": msgCodeNoData,
			"msg1":   "조회할 자료가 없습니다",
		})
	}))

	_, err := c.FetchQuote(context.Background(), "999999", "")
	assert.ErrorIs(t, err, domain.ErrSymbolNotFound)
}

func TestFetchQuoteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			writeToken(w, "tok")
			return
		}
		time.Sleep(300 * time.Millisecond)
		writeDomesticQuote(w, "74300")
	}))
	defer srv.Close()

	tm := NewTokenManager(srv.URL, "key", "secret", &memTokenStore{}, 23*time.Hour)
	c := NewClient(srv.URL, "key", "secret", tm, 50*time.Millisecond)

	_, err := c.FetchQuote(context.Background(), "005930", "")
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestFetchQuoteInvalidSymbol(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no upstream call expected for invalid symbol")
	}))

	_, err := c.FetchQuote(context.Background(), "not-a-symbol", "")
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)
}

func TestFetchOverseasQuote(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case tokenPath:
			writeToken(w, "tok")
		case overseasQuotePath:
			assert.Equal(t, "NAS", r.URL.Query().Get("EXCD"))
			assert.Equal(t, "AAPL", r.URL.Query().Get("SYMB"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"rt_cd": "0",
				"output": map[string]string{
					"last": "227.63",
					"diff": "-1.12",
					"rate": "-0.49",
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	quote, err := c.FetchQuote(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.Equal(t, "227.63", quote.Price.String())
	assert.Equal(t, domain.CurrencyUSD, quote.Currency)
	assert.Equal(t, domain.ExchangeNASDefault, quote.Exchange)
}

func TestFetchNews(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case tokenPath:
			writeToken(w, "tok")
		case newsPath:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"rt_cd": "0",
				"output": []map[string]string{
					{"hts_pbnt_titl_cntt": "실적 발표", "dorg": "연합뉴스", "data_dt": "20250601", "data_tm": "093000"},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	items, err := c.FetchNews(context.Background(), "005930")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "실적 발표", items[0].Title)
	assert.Equal(t, "005930", items[0].Symbol)
}
