// Package kis 对接韩国投资证券风格的行情开放接口
package kis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/stocktrading/internal/marketdata/domain"
	"github.com/wyfcoding/stocktrading/pkg/logger"
)

const (
	domesticQuotePath = "/uapi/domestic-stock/v1/quotations/inquire-price"
	overseasQuotePath = "/uapi/overseas-price/v1/quotations/price"
	newsPath          = "/uapi/domestic-stock/v1/quotations/news-title"

	trIDDomesticQuote = "FHKST01010100"
	trIDOverseasQuote = "HHDFS00000300"
	trIDNews          = "FHKST01011800"

	// 上游业务错误码
	msgCodeTokenExpired  = "EGW00121"
	msgCodeTokenInvalid  = "EGW00123"
	msgCodeRateLimited   = "EGW00201"
	msgCodeNoData        = "MCA05918"
	rtCodeOK             = "0"
)

// Client 上游行情客户端，实现 domain.QuoteSource。
// 认证失效时强制刷新令牌并重试一次，对调用方透明。
type Client struct {
	baseURL    string
	appKey     string
	appSecret  string
	httpClient *http.Client
	tokens     *TokenManager
	timeout    time.Duration
	onCall     func(outcome string, elapsed time.Duration)
}

// ClientOption 可选配置
type ClientOption func(*Client)

// WithCallHook 每次上游调用的结果回调，用于指标上报
func WithCallHook(fn func(outcome string, elapsed time.Duration)) ClientOption {
	return func(c *Client) { c.onCall = fn }
}

// WithHTTPClient 注入底层 HTTP 客户端，测试用
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient 创建上游客户端
func NewClient(baseURL, appKey, appSecret string, tokens *TokenManager, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		appKey:     appKey,
		appSecret:  appSecret,
		httpClient: &http.Client{Timeout: timeout + time.Second},
		tokens:     tokens,
		timeout:    timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchQuote 拉取实时报价。市场由代码推断，exchange 为空时使用市场默认值。
func (c *Client) FetchQuote(ctx context.Context, symbol, exchange string) (*domain.Quote, error) {
	market, err := domain.ResolveMarket(symbol)
	if err != nil {
		return nil, err
	}
	if exchange == "" {
		exchange = market.DefaultExchange()
	}

	var quote *domain.Quote
	err = c.withAuthRetry(ctx, func(ctx context.Context, token string) error {
		var innerErr error
		if market == domain.MarketDomestic {
			quote, innerErr = c.fetchDomestic(ctx, token, symbol)
		} else {
			quote, innerErr = c.fetchOverseas(ctx, token, symbol, exchange)
		}
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	quote.Exchange = exchange
	quote.Currency = market.CurrencyOf()
	return quote, nil
}

// FetchNews 拉取个股新闻标题列表
func (c *Client) FetchNews(ctx context.Context, symbol string) ([]domain.NewsItem, error) {
	if _, err := domain.ResolveMarket(symbol); err != nil {
		return nil, err
	}

	var items []domain.NewsItem
	err := c.withAuthRetry(ctx, func(ctx context.Context, token string) error {
		raw, innerErr := c.get(ctx, token, trIDNews, newsPath, url.Values{"fid_input_iscd": {symbol}})
		if innerErr != nil {
			return innerErr
		}
		var payload struct {
			Output []struct {
				Title    string `json:"hts_pbnt_titl_cntt"`
				Source   string `json:"dorg"`
				Date     string `json:"data_dt"`
				Time     string `json:"data_tm"`
			} `json:"output"`
		}
		if innerErr = json.Unmarshal(raw, &payload); innerErr != nil {
			return fmt.Errorf("%w: 解析新闻响应失败: %v", domain.ErrUnavailable, innerErr)
		}
		items = make([]domain.NewsItem, 0, len(payload.Output))
		for _, o := range payload.Output {
			published, _ := time.Parse("20060102150405", o.Date+o.Time)
			items = append(items, domain.NewsItem{
				Symbol:      symbol,
				Title:       o.Title,
				Source:      o.Source,
				PublishedAt: published,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// withAuthRetry 执行上游调用；认证失效时刷新令牌后重试一次
func (c *Client) withAuthRetry(ctx context.Context, call func(ctx context.Context, token string) error) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	err = call(ctx, token)
	if !errors.Is(err, domain.ErrAuthExpired) {
		return err
	}

	logger.Warn(ctx, "上游令牌失效，刷新后重试")
	token, refreshErr := c.tokens.ForceRefresh(ctx)
	if refreshErr != nil {
		return refreshErr
	}
	return call(ctx, token)
}

func (c *Client) fetchDomestic(ctx context.Context, token, symbol string) (*domain.Quote, error) {
	raw, err := c.get(ctx, token, trIDDomesticQuote, domesticQuotePath, url.Values{
		"fid_cond_mrkt_div_code": {"J"},
		"fid_input_iscd":         {symbol},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Output struct {
			Price      string `json:"stck_prpr"`
			Change     string `json:"prdy_vrss"`
			ChangeRate string `json:"prdy_ctrt"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: 解析国内报价失败: %v", domain.ErrUnavailable, err)
	}
	if payload.Output.Price == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
	}
	return c.buildQuote(symbol, payload.Output.Price, payload.Output.Change, payload.Output.ChangeRate)
}

func (c *Client) fetchOverseas(ctx context.Context, token, symbol, exchange string) (*domain.Quote, error) {
	raw, err := c.get(ctx, token, trIDOverseasQuote, overseasQuotePath, url.Values{
		"AUTH": {""},
		"EXCD": {exchange},
		"SYMB": {symbol},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Output struct {
			Price      string `json:"last"`
			Change     string `json:"diff"`
			ChangeRate string `json:"rate"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: 解析海外报价失败: %v", domain.ErrUnavailable, err)
	}
	if payload.Output.Price == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
	}
	return c.buildQuote(symbol, payload.Output.Price, payload.Output.Change, payload.Output.ChangeRate)
}

func (c *Client) buildQuote(symbol, price, change, changeRate string) (*domain.Quote, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("%w: 非法价格 %q", domain.ErrUnavailable, price)
	}
	ch, err := decimal.NewFromString(change)
	if err != nil {
		ch = decimal.Zero
	}
	rate, err := decimal.NewFromString(changeRate)
	if err != nil {
		rate = decimal.Zero
	}
	return &domain.Quote{
		Symbol:     symbol,
		Price:      p,
		Change:     ch,
		ChangeRate: rate,
		FetchedAt:  time.Now(),
	}, nil
}

// get 发起一次带认证头的 GET 请求并做错误分类
func (c *Client) get(ctx context.Context, token, trID, path string, query url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.doGet(ctx, token, trID, path, query)
	if c.onCall != nil {
		c.onCall(outcomeOf(err), time.Since(start))
	}
	return raw, err
}

func (c *Client) doGet(ctx context.Context, token, trID, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("构造上游请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("custtype", "P")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return raw, classify(resp.StatusCode, raw)
}

// classify 将上游 HTTP 状态码与业务错误码映射为领域错误
func classify(status int, raw []byte) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrAuthExpired
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	}

	var envelope struct {
		RtCd    string `json:"rt_cd"`
		MsgCd   string `json:"msg_cd"`
		Msg     string `json:"msg1"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if status != http.StatusOK {
			return fmt.Errorf("%w: 上游返回 %d", domain.ErrUnavailable, status)
		}
		return fmt.Errorf("%w: 非法上游响应", domain.ErrUnavailable)
	}

	switch envelope.MsgCd {
	case msgCodeTokenExpired, msgCodeTokenInvalid:
		return domain.ErrAuthExpired
	case msgCodeRateLimited:
		return domain.ErrRateLimited
	case msgCodeNoData:
		return domain.ErrSymbolNotFound
	}
	if envelope.RtCd != rtCodeOK && envelope.RtCd != "" {
		return fmt.Errorf("%w: %s(%s)", domain.ErrUnavailable, envelope.Msg, envelope.MsgCd)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: 上游返回 %d", domain.ErrUnavailable, status)
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrAuthExpired):
		return "auth_expired"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrSymbolNotFound):
		return "not_found"
	default:
		return "error"
	}
}
