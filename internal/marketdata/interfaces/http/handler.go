// Package http 行情服务的 HTTP 接入层
package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/stocktrading/internal/marketdata/application"
	"github.com/wyfcoding/stocktrading/internal/marketdata/domain"
	"github.com/wyfcoding/stocktrading/pkg/logger"
	"github.com/wyfcoding/stocktrading/pkg/money"
	"github.com/wyfcoding/stocktrading/pkg/response"
)

const maxBatchSymbols = 20

// QuoteHandler 行情 HTTP 处理器
type QuoteHandler struct {
	service *application.MarketDataService
}

// NewQuoteHandler 创建行情处理器
func NewQuoteHandler(service *application.MarketDataService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *QuoteHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/quotes", h.GetQuotes)
	r.GET("/quotes/:symbol", h.GetQuote)
	r.GET("/news/:symbol", h.GetNews)
}

// QuoteDTO 报价出参。金额按货币展示位数取整。
type QuoteDTO struct {
	Symbol     string `json:"symbol"`
	Exchange   string `json:"exchange"`
	Price      string `json:"price"`
	Change     string `json:"change"`
	ChangeRate string `json:"change_rate"`
	Currency   string `json:"currency"`
	FetchedAt  string `json:"fetched_at"`
}

// BatchQuoteItemDTO 批量报价中的单条结果，quote 与 error 恰有一个非空
type BatchQuoteItemDTO struct {
	Symbol string    `json:"symbol"`
	Quote  *QuoteDTO `json:"quote"`
	Error  string    `json:"error,omitempty"`
}

// NewsItemDTO 新闻出参
type NewsItemDTO struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}

// GetQuote 单只证券报价
// GET /api/v1/quotes/:symbol?exchange=NAS
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	symbol := c.Param("symbol")
	quote, err := h.service.GetQuote(c.Request.Context(), symbol, c.Query("exchange"))
	if err != nil {
		h.writeQuoteError(c, symbol, err)
		return
	}
	response.Success(c, toQuoteDTO(quote))
}

// GetQuotes 批量报价
// GET /api/v1/quotes?symbols=005930,AAPL&exchange=NAS
func (h *QuoteHandler) GetQuotes(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("symbols"))
	if raw == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "symbols is required")
		return
	}
	var reqs []application.QuoteRequest
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		reqs = append(reqs, application.QuoteRequest{Symbol: s, Exchange: c.Query("exchange")})
	}
	if len(reqs) == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "symbols is required")
		return
	}
	if len(reqs) > maxBatchSymbols {
		response.ErrorWithStatus(c, http.StatusBadRequest, "too many symbols in one request")
		return
	}

	results, err := h.service.GetQuotes(c.Request.Context(), reqs)
	if err != nil {
		logger.Error(c.Request.Context(), "批量报价失败", "error", err)
		response.InternalError(c)
		return
	}

	items := make([]BatchQuoteItemDTO, len(results))
	for i, r := range results {
		items[i].Symbol = r.Symbol
		if r.Err != nil {
			items[i].Error = errorLabel(r.Err)
			continue
		}
		items[i].Quote = toQuoteDTO(r.Quote)
	}
	response.Success(c, items)
}

// GetNews 个股新闻
// GET /api/v1/news/:symbol
func (h *QuoteHandler) GetNews(c *gin.Context) {
	symbol := c.Param("symbol")
	items, err := h.service.GetNews(c.Request.Context(), symbol)
	if err != nil {
		h.writeQuoteError(c, symbol, err)
		return
	}
	dtos := make([]NewsItemDTO, len(items))
	for i, it := range items {
		dtos[i] = NewsItemDTO{
			Title:       it.Title,
			Source:      it.Source,
			PublishedAt: it.PublishedAt.Format(time.RFC3339),
		}
	}
	response.Success(c, dtos)
}

func (h *QuoteHandler) writeQuoteError(c *gin.Context, symbol string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSymbol):
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid symbol")
	case errors.Is(err, domain.ErrSymbolNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, "symbol not found")
	case errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, domain.ErrUnavailable),
		errors.Is(err, domain.ErrAuthExpired):
		response.ErrorWithStatus(c, http.StatusServiceUnavailable, "market data temporarily unavailable")
	default:
		logger.Error(c.Request.Context(), "报价接口内部错误", "symbol", symbol, "error", err)
		response.InternalError(c)
	}
}

// errorLabel 批量结果中对外暴露的错误类别，细节只进日志
func errorLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidSymbol):
		return "invalid_symbol"
	case errors.Is(err, domain.ErrSymbolNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	default:
		return "unavailable"
	}
}

func toQuoteDTO(q *domain.Quote) *QuoteDTO {
	return &QuoteDTO{
		Symbol:     q.Symbol,
		Exchange:   q.Exchange,
		Price:      money.Format(q.Price, q.Currency),
		Change:     money.Format(q.Change, q.Currency),
		ChangeRate: q.ChangeRate.StringFixed(2),
		Currency:   q.Currency,
		FetchedAt:  q.FetchedAt.Format(time.RFC3339),
	}
}
