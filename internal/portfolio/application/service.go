// Package application 组合估值服务：持仓 + 现金 + 实时报价的只读快照
package application

import (
	"context"

	"github.com/shopspring/decimal"

	mdapp "github.com/wyfcoding/stocktrading/internal/marketdata/application"
	"github.com/wyfcoding/stocktrading/internal/trading/domain"
	"github.com/wyfcoding/stocktrading/pkg/logger"
)

// MarketDataPort 批量行情接口，由行情应用服务实现
type MarketDataPort interface {
	GetQuotes(ctx context.Context, reqs []mdapp.QuoteRequest) ([]mdapp.QuoteResult, error)
}

// PositionValuation 单只持仓的估值。报价不可用时市值与盈亏为 nil。
type PositionValuation struct {
	Symbol       string
	Currency     string
	Quantity     decimal.Decimal
	AvgPrice     decimal.Decimal
	CostBasis    decimal.Decimal
	CurrentPrice *decimal.Decimal
	MarketValue  *decimal.Decimal
	ProfitLoss   *decimal.Decimal
}

// CurrencyTotal 按货币汇总的估值。Valued 为 false 时说明
// 至少一只持仓缺报价，市值与盈亏合计不完整。
type CurrencyTotal struct {
	Currency    string
	CashBalance decimal.Decimal
	CostBasis   decimal.Decimal
	MarketValue decimal.Decimal
	ProfitLoss  decimal.Decimal
	Valued      bool
}

// Snapshot 组合估值快照
type Snapshot struct {
	UserID    string
	Positions []PositionValuation
	Totals    []CurrencyTotal
}

// PortfolioService 组合估值应用服务。纯只读，不播种不落库。
type PortfolioService struct {
	accounts  domain.AccountRepository
	positions domain.PositionRepository
	market    MarketDataPort
}

// NewPortfolioService 创建组合估值服务
func NewPortfolioService(
	accounts domain.AccountRepository,
	positions domain.PositionRepository,
	market MarketDataPort,
) *PortfolioService {
	return &PortfolioService{
		accounts:  accounts,
		positions: positions,
		market:    market,
	}
}

// Valuate 对用户全部持仓做一次估值。
// 个别报价失败不影响整体：该持仓市值置空，对应货币合计标记不完整。
func (s *PortfolioService) Valuate(ctx context.Context, userID string) (*Snapshot, error) {
	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.positions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var held []*domain.Position
	for _, p := range all {
		if p.Quantity.IsPositive() {
			held = append(held, p)
		}
	}

	quotes := make(map[string]mdapp.QuoteResult, len(held))
	if len(held) > 0 {
		reqs := make([]mdapp.QuoteRequest, len(held))
		for i, p := range held {
			reqs[i] = mdapp.QuoteRequest{Symbol: p.Symbol}
		}
		results, err := s.market.GetQuotes(ctx, reqs)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			quotes[r.Symbol] = r
		}
	}

	totals := make(map[string]*CurrencyTotal)
	totalOf := func(currency string) *CurrencyTotal {
		t, ok := totals[currency]
		if !ok {
			t = &CurrencyTotal{Currency: currency, Valued: true}
			totals[currency] = t
		}
		return t
	}
	for _, a := range accounts {
		totalOf(a.Currency).CashBalance = a.Balance
	}

	valuations := make([]PositionValuation, 0, len(held))
	for _, p := range held {
		v := PositionValuation{
			Symbol:    p.Symbol,
			Currency:  p.Currency,
			Quantity:  p.Quantity,
			AvgPrice:  p.AvgPrice,
			CostBasis: p.CostBasis(),
		}
		total := totalOf(p.Currency)
		total.CostBasis = total.CostBasis.Add(v.CostBasis)

		r, ok := quotes[p.Symbol]
		if !ok || r.Err != nil || r.Quote == nil {
			// 报价缺失：该货币的市值合计不再完整
			total.Valued = false
			if r.Err != nil {
				logger.Warn(ctx, "估值缺少报价", "user_id", userID, "symbol", p.Symbol, "error", r.Err)
			}
			valuations = append(valuations, v)
			continue
		}

		price := r.Quote.Price
		marketValue := price.Mul(p.Quantity)
		pnl := p.UnrealizedPnL(price)
		v.CurrentPrice = &price
		v.MarketValue = &marketValue
		v.ProfitLoss = &pnl
		total.MarketValue = total.MarketValue.Add(marketValue)
		total.ProfitLoss = total.ProfitLoss.Add(pnl)
		valuations = append(valuations, v)
	}

	snapshot := &Snapshot{UserID: userID, Positions: valuations}
	for _, currency := range []string{"KRW", "USD"} {
		if t, ok := totals[currency]; ok {
			snapshot.Totals = append(snapshot.Totals, *t)
		}
	}
	return snapshot, nil
}
