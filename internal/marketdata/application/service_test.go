package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/stocktrading/internal/marketdata/domain"
	"github.com/wyfcoding/stocktrading/pkg/ttlcache"
)

// fakeSource 可编程的上游桩
type fakeSource struct {
	mu       sync.Mutex
	calls    map[string]int
	inflight int32
	maxSeen  int32
	fetch    func(symbol string) (*domain.Quote, error)
	news     func(symbol string) ([]domain.NewsItem, error)
	delay    time.Duration
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls: make(map[string]int),
		fetch: func(symbol string) (*domain.Quote, error) {
			return &domain.Quote{Symbol: symbol, Price: decimal.NewFromInt(100)}, nil
		},
	}
}

func (f *fakeSource) FetchQuote(ctx context.Context, symbol, exchange string) (*domain.Quote, error) {
	cur := atomic.AddInt32(&f.inflight, 1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if cur <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, cur) {
			break
		}
	}
	defer atomic.AddInt32(&f.inflight, -1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls[symbol]++
	f.mu.Unlock()
	return f.fetch(symbol)
}

func (f *fakeSource) FetchNews(ctx context.Context, symbol string) ([]domain.NewsItem, error) {
	f.mu.Lock()
	f.calls["news:"+symbol]++
	f.mu.Unlock()
	if f.news != nil {
		return f.news(symbol)
	}
	return []domain.NewsItem{{Symbol: symbol, Title: "headline"}}, nil
}

func (f *fakeSource) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func newService(src domain.QuoteSource, batchLimit int) *MarketDataService {
	return NewMarketDataService(
		src,
		ttlcache.New[*domain.Quote](time.Minute),
		ttlcache.New[[]domain.NewsItem](10*time.Minute),
		batchLimit,
	)
}

func TestGetQuoteCachesAndCoalesces(t *testing.T) {
	src := newFakeSource()
	src.delay = 30 * time.Millisecond
	svc := newService(src, 4)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q, err := svc.GetQuote(context.Background(), "005930", "")
			require.NoError(t, err)
			assert.Equal(t, "005930", q.Symbol)
		}()
	}
	wg.Wait()

	// 并发请求合并为一次回源
	assert.Equal(t, 1, src.callCount("005930"))

	_, err := svc.GetQuote(context.Background(), "005930", "")
	require.NoError(t, err)
	assert.Equal(t, 1, src.callCount("005930"))
}

func TestGetQuoteInvalidSymbol(t *testing.T) {
	svc := newService(newFakeSource(), 4)
	_, err := svc.GetQuote(context.Background(), "bad!", "")
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)
}

func TestGetQuotesPartialFailurePreservesOrder(t *testing.T) {
	src := newFakeSource()
	src.fetch = func(symbol string) (*domain.Quote, error) {
		if symbol == "MSFT" {
			return nil, domain.ErrTimeout
		}
		return &domain.Quote{Symbol: symbol, Price: decimal.NewFromInt(42)}, nil
	}
	svc := newService(src, 4)

	results, err := svc.GetQuotes(context.Background(), []QuoteRequest{
		{Symbol: "005930"},
		{Symbol: "MSFT"},
		{Symbol: "AAPL"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "005930", results[0].Symbol)
	require.NotNil(t, results[0].Quote)
	assert.NoError(t, results[0].Err)

	assert.Equal(t, "MSFT", results[1].Symbol)
	assert.Nil(t, results[1].Quote)
	assert.ErrorIs(t, results[1].Err, domain.ErrTimeout)

	assert.Equal(t, "AAPL", results[2].Symbol)
	require.NotNil(t, results[2].Quote)
	assert.NoError(t, results[2].Err)
}

func TestGetQuotesRespectsConcurrencyLimit(t *testing.T) {
	src := newFakeSource()
	src.delay = 20 * time.Millisecond
	svc := newService(src, 2)

	reqs := make([]QuoteRequest, 8)
	for i := range reqs {
		reqs[i] = QuoteRequest{Symbol: fmt.Sprintf("%06d", i)}
	}
	results, err := svc.GetQuotes(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 8)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&src.maxSeen), int32(2))
}

func TestGetQuotesWarmSymbolsSkipUpstream(t *testing.T) {
	src := newFakeSource()
	svc := newService(src, 4)

	_, err := svc.GetQuote(context.Background(), "005930", "")
	require.NoError(t, err)

	results, err := svc.GetQuotes(context.Background(), []QuoteRequest{
		{Symbol: "005930"},
		{Symbol: "AAPL"},
	})
	require.NoError(t, err)
	require.NotNil(t, results[0].Quote)
	require.NotNil(t, results[1].Quote)

	assert.Equal(t, 1, src.callCount("005930"))
	assert.Equal(t, 1, src.callCount("AAPL"))
}

func TestGetQuotesEmptyBatch(t *testing.T) {
	svc := newService(newFakeSource(), 4)
	_, err := svc.GetQuotes(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestGetQuotesInvalidSymbolInBatch(t *testing.T) {
	src := newFakeSource()
	svc := newService(src, 4)

	results, err := svc.GetQuotes(context.Background(), []QuoteRequest{
		{Symbol: "AAPL"},
		{Symbol: "??"},
	})
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, domain.ErrInvalidSymbol)
	assert.Equal(t, 0, src.callCount("??"))
}

func TestGetNewsCached(t *testing.T) {
	src := newFakeSource()
	svc := newService(src, 4)

	items, err := svc.GetNews(context.Background(), "005930")
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.GetNews(context.Background(), "005930")
	require.NoError(t, err)
	assert.Equal(t, 1, src.callCount("news:005930"))
}
