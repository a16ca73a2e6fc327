package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdapp "github.com/wyfcoding/stocktrading/internal/marketdata/application"
	mddomain "github.com/wyfcoding/stocktrading/internal/marketdata/domain"
	"github.com/wyfcoding/stocktrading/internal/trading/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeAccounts struct{ accounts []*domain.Account }

func (f *fakeAccounts) Get(ctx context.Context, userID, currency string) (*domain.Account, error) {
	for _, a := range f.accounts {
		if a.UserID == userID && a.Currency == currency {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) ListByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	var out []*domain.Account
	for _, a := range f.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAccounts) Save(ctx context.Context, account *domain.Account) error { return nil }

type fakePositions struct{ positions []*domain.Position }

func (f *fakePositions) Get(ctx context.Context, userID, symbol string) (*domain.Position, error) {
	return nil, nil
}

func (f *fakePositions) ListByUser(ctx context.Context, userID string) ([]*domain.Position, error) {
	var out []*domain.Position
	for _, p := range f.positions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePositions) Save(ctx context.Context, position *domain.Position) error { return nil }

type fakeMarket struct {
	prices map[string]decimal.Decimal
	errs   map[string]error
	calls  int
}

func (f *fakeMarket) GetQuotes(ctx context.Context, reqs []mdapp.QuoteRequest) ([]mdapp.QuoteResult, error) {
	f.calls++
	results := make([]mdapp.QuoteResult, len(reqs))
	for i, r := range reqs {
		results[i].Symbol = r.Symbol
		if err, ok := f.errs[r.Symbol]; ok {
			results[i].Err = err
			continue
		}
		market, _ := mddomain.ResolveMarket(r.Symbol)
		results[i].Quote = &mddomain.Quote{
			Symbol:   r.Symbol,
			Price:    f.prices[r.Symbol],
			Currency: market.CurrencyOf(),
		}
	}
	return results, nil
}

func TestValuate(t *testing.T) {
	accounts := &fakeAccounts{accounts: []*domain.Account{
		{UserID: "u1", Currency: "KRW", Balance: dec("9997450")},
		{UserID: "u1", Currency: "USD", Balance: dec("10000")},
	}}
	positions := &fakePositions{positions: []*domain.Position{
		{UserID: "u1", Symbol: "005930", Currency: "KRW", Quantity: dec("15"), AvgPrice: dec("110")},
		{UserID: "u1", Symbol: "AAPL", Currency: "USD", Quantity: dec("2"), AvgPrice: dec("220")},
	}}
	market := &fakeMarket{prices: map[string]decimal.Decimal{
		"005930": dec("130"),
		"AAPL":   dec("227.63"),
	}}

	svc := NewPortfolioService(accounts, positions, market)
	snap, err := svc.Valuate(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, snap.Positions, 2)

	krw := snap.Positions[0]
	assert.Equal(t, "005930", krw.Symbol)
	require.NotNil(t, krw.MarketValue)
	assert.True(t, krw.MarketValue.Equal(dec("1950")))
	assert.True(t, krw.ProfitLoss.Equal(dec("300")))

	require.Len(t, snap.Totals, 2)
	assert.Equal(t, "KRW", snap.Totals[0].Currency)
	assert.True(t, snap.Totals[0].Valued)
	assert.True(t, snap.Totals[0].CashBalance.Equal(dec("9997450")))
	assert.True(t, snap.Totals[0].MarketValue.Equal(dec("1950")))
	assert.Equal(t, "USD", snap.Totals[1].Currency)
	assert.True(t, snap.Totals[1].ProfitLoss.Equal(dec("15.26")))
}

func TestValuateQuoteFailureLeavesPositionUnvalued(t *testing.T) {
	accounts := &fakeAccounts{accounts: []*domain.Account{
		{UserID: "u1", Currency: "USD", Balance: dec("10000")},
	}}
	positions := &fakePositions{positions: []*domain.Position{
		{UserID: "u1", Symbol: "AAPL", Currency: "USD", Quantity: dec("2"), AvgPrice: dec("220")},
		{UserID: "u1", Symbol: "MSFT", Currency: "USD", Quantity: dec("1"), AvgPrice: dec("400")},
	}}
	market := &fakeMarket{
		prices: map[string]decimal.Decimal{"AAPL": dec("230")},
		errs:   map[string]error{"MSFT": mddomain.ErrTimeout},
	}

	svc := NewPortfolioService(accounts, positions, market)
	snap, err := svc.Valuate(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, snap.Positions, 2)

	assert.NotNil(t, snap.Positions[0].MarketValue)
	assert.Nil(t, snap.Positions[1].MarketValue)
	assert.Nil(t, snap.Positions[1].ProfitLoss)

	require.Len(t, snap.Totals, 1)
	// 缺一只报价，美元合计标记为不完整，成本合计仍然齐全
	assert.False(t, snap.Totals[0].Valued)
	assert.True(t, snap.Totals[0].CostBasis.Equal(dec("840")))
	assert.True(t, snap.Totals[0].MarketValue.Equal(dec("460")))
}

func TestValuateSkipsClosedPositionsAndEmptyUser(t *testing.T) {
	positions := &fakePositions{positions: []*domain.Position{
		{UserID: "u1", Symbol: "AAPL", Currency: "USD", Quantity: decimal.Zero, AvgPrice: decimal.Zero},
	}}
	market := &fakeMarket{}

	svc := NewPortfolioService(&fakeAccounts{}, positions, market)
	snap, err := svc.Valuate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, snap.Positions)
	assert.Empty(t, snap.Totals)
	// 没有待估值持仓时不应触发行情调用
	assert.Equal(t, 0, market.calls)
}
