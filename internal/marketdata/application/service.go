// Package application 行情服务的应用层：缓存读穿、批量并发协调
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/stocktrading/internal/marketdata/domain"
	"github.com/wyfcoding/stocktrading/pkg/logger"
	"github.com/wyfcoding/stocktrading/pkg/ttlcache"
)

// ErrEmptyBatch 批量请求为空
var ErrEmptyBatch = errors.New("empty batch request")

// QuoteRequest 批量报价中的单条请求
type QuoteRequest struct {
	Symbol   string
	Exchange string
}

// QuoteResult 批量报价中的单条结果。Quote 与 Err 恰有一个非零。
type QuoteResult struct {
	Symbol string
	Quote  *domain.Quote
	Err    error
}

// MarketDataService 行情应用服务。
// 报价与新闻都走进程内 TTL 缓存读穿，单条失败不影响批量中的其他代码。
type MarketDataService struct {
	source     domain.QuoteSource
	quotes     *ttlcache.Cache[*domain.Quote]
	news       *ttlcache.Cache[[]domain.NewsItem]
	batchLimit int
}

// NewMarketDataService 创建行情应用服务
func NewMarketDataService(
	source domain.QuoteSource,
	quotes *ttlcache.Cache[*domain.Quote],
	news *ttlcache.Cache[[]domain.NewsItem],
	batchLimit int,
) *MarketDataService {
	if batchLimit <= 0 {
		batchLimit = 4
	}
	return &MarketDataService{
		source:     source,
		quotes:     quotes,
		news:       news,
		batchLimit: batchLimit,
	}
}

// GetQuote 获取单只证券报价。缓存命中直接返回，未命中回源并写缓存。
func (s *MarketDataService) GetQuote(ctx context.Context, symbol, exchange string) (*domain.Quote, error) {
	market, err := domain.ResolveMarket(symbol)
	if err != nil {
		return nil, err
	}
	if exchange == "" {
		exchange = market.DefaultExchange()
	}

	key := quoteKey(symbol, exchange)
	start := time.Now()
	quote, err := s.quotes.Get(ctx, key, func(ctx context.Context) (*domain.Quote, error) {
		return s.source.FetchQuote(ctx, symbol, exchange)
	})
	if err != nil {
		logger.Warn(ctx, "获取报价失败", "symbol", symbol, "error", err)
		return nil, err
	}
	logger.Debug(ctx, "获取报价", "symbol", symbol, "elapsed", time.Since(start))
	return quote, nil
}

// GetQuotes 批量获取报价。结果与请求同序同长，单条失败记录在对应结果上。
// 命中缓存的代码直接填充，只有未命中的代码进入有界并发回源。
func (s *MarketDataService) GetQuotes(ctx context.Context, reqs []QuoteRequest) ([]QuoteResult, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}

	results := make([]QuoteResult, len(reqs))
	var cold []int
	for i, r := range reqs {
		results[i].Symbol = r.Symbol
		market, err := domain.ResolveMarket(r.Symbol)
		if err != nil {
			results[i].Err = err
			continue
		}
		exchange := r.Exchange
		if exchange == "" {
			exchange = market.DefaultExchange()
		}
		if q, ok := s.quotes.Peek(quoteKey(r.Symbol, exchange)); ok {
			results[i].Quote = q
			continue
		}
		cold = append(cold, i)
	}

	if len(cold) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)
	for _, i := range cold {
		g.Go(func() error {
			q, err := s.GetQuote(gctx, reqs[i].Symbol, reqs[i].Exchange)
			if err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Quote = q
			return nil
		})
	}
	// 单条错误都落在各自结果上，这里不会返回错误
	_ = g.Wait()
	return results, nil
}

// GetNews 获取个股新闻，走独立的长 TTL 缓存
func (s *MarketDataService) GetNews(ctx context.Context, symbol string) ([]domain.NewsItem, error) {
	if _, err := domain.ResolveMarket(symbol); err != nil {
		return nil, err
	}
	return s.news.Get(ctx, symbol, func(ctx context.Context) ([]domain.NewsItem, error) {
		return s.source.FetchNews(ctx, symbol)
	})
}

func quoteKey(symbol, exchange string) string {
	return fmt.Sprintf("%s:%s", symbol, exchange)
}
