// Package application 交易服务的应用层：下单、出入金、账户查询
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/stocktrading/internal/marketdata/domain"
	"github.com/wyfcoding/stocktrading/internal/trading/domain"
	"github.com/wyfcoding/stocktrading/pkg/idgen"
	"github.com/wyfcoding/stocktrading/pkg/keylock"
	"github.com/wyfcoding/stocktrading/pkg/logger"
)

// QuoteGetter 行情查询接口，由行情应用服务实现
type QuoteGetter interface {
	GetQuote(ctx context.Context, symbol, exchange string) (*mddomain.Quote, error)
}

// ExecuteOrderCommand 下单入参
type ExecuteOrderCommand struct {
	UserID   string
	Symbol   string
	Side     domain.Side
	Quantity decimal.Decimal
}

// TradingService 交易应用服务。
// 同一用户的全部资金变更经 per-user 锁串行化，锁内单事务提交。
type TradingService struct {
	accounts  domain.AccountRepository
	positions domain.PositionRepository
	orders    domain.OrderRepository
	quotes    QuoteGetter
	tx        domain.TxManager
	publisher domain.OrderEventPublisher
	locks     *keylock.KeyLock
	onExecute func(side string)
	onReject  func(reason string)
}

// TradingServiceOption 可选配置
type TradingServiceOption func(*TradingService)

// WithOrderHooks 成交/拒单回调，用于指标上报
func WithOrderHooks(onExecute func(side string), onReject func(reason string)) TradingServiceOption {
	return func(s *TradingService) {
		s.onExecute = onExecute
		s.onReject = onReject
	}
}

// NewTradingService 创建交易应用服务
func NewTradingService(
	accounts domain.AccountRepository,
	positions domain.PositionRepository,
	orders domain.OrderRepository,
	quotes QuoteGetter,
	tx domain.TxManager,
	publisher domain.OrderEventPublisher,
	opts ...TradingServiceOption,
) *TradingService {
	s := &TradingService{
		accounts:  accounts,
		positions: positions,
		orders:    orders,
		quotes:    quotes,
		tx:        tx,
		publisher: publisher,
		locks:     keylock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExecuteOrder 以当前报价即时全量成交一笔市价单。
// 校验全部通过后才落任何变更，报价失败则整单拒绝。
func (s *TradingService) ExecuteOrder(ctx context.Context, cmd ExecuteOrderCommand) (*domain.Order, error) {
	if !cmd.Side.Valid() || !cmd.Quantity.IsPositive() {
		s.reject("invalid_order")
		return nil, domain.ErrInvalidOrder
	}
	market, err := mddomain.ResolveMarket(cmd.Symbol)
	if err != nil {
		s.reject("invalid_order")
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidOrder, err)
	}
	currency := market.CurrencyOf()

	// 报价在锁外获取，减小临界区；同一用户的成交价以此为准
	quote, err := s.quotes.GetQuote(ctx, cmd.Symbol, "")
	if err != nil {
		s.reject("quote_unavailable")
		return nil, fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
	}
	notional := quote.Price.Mul(cmd.Quantity)

	s.locks.Lock(cmd.UserID)
	defer s.locks.Unlock(cmd.UserID)

	order := &domain.Order{
		OrderID:    fmt.Sprintf("ORD-%d", idgen.GenID()),
		UserID:     cmd.UserID,
		Symbol:     cmd.Symbol,
		Side:       cmd.Side,
		Quantity:   cmd.Quantity,
		Price:      quote.Price,
		Currency:   currency,
		ExecutedAt: time.Now(),
	}

	err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
		account, err := s.ensureAccount(txCtx, cmd.UserID, currency)
		if err != nil {
			return err
		}
		position, err := s.positions.Get(txCtx, cmd.UserID, cmd.Symbol)
		if err != nil {
			return err
		}
		if position == nil {
			position = &domain.Position{
				UserID:   cmd.UserID,
				Symbol:   cmd.Symbol,
				Currency: currency,
				Quantity: decimal.Zero,
				AvgPrice: decimal.Zero,
			}
		}

		// 先校验后变更，任何失败都不落库
		switch cmd.Side {
		case domain.SideBuy:
			if !account.CanAfford(notional) {
				return domain.ErrInsufficientFunds
			}
			account.Debit(notional)
			position.ApplyBuy(cmd.Quantity, quote.Price)
		case domain.SideSell:
			if err := position.ApplySell(cmd.Quantity); err != nil {
				return err
			}
			account.Credit(notional)
		}

		if err := s.accounts.Save(txCtx, account); err != nil {
			return err
		}
		if err := s.positions.Save(txCtx, position); err != nil {
			return err
		}
		return s.orders.Append(txCtx, order)
	})
	if err != nil {
		s.reject(rejectReason(err))
		return nil, err
	}

	if s.onExecute != nil {
		s.onExecute(string(cmd.Side))
	}
	logger.Info(ctx, "订单成交",
		"order_id", order.OrderID, "user_id", cmd.UserID,
		"symbol", cmd.Symbol, "side", cmd.Side,
		"quantity", cmd.Quantity, "price", quote.Price)

	// 事件发布尽力而为，失败只记日志
	if s.publisher != nil {
		if err := s.publisher.PublishExecuted(ctx, domain.NewOrderExecutedEvent(order)); err != nil {
			logger.Warn(ctx, "发布成交事件失败", "order_id", order.OrderID, "error", err)
		}
	}
	return order, nil
}

// Deposit 入金
func (s *TradingService) Deposit(ctx context.Context, userID, currency string, amount decimal.Decimal) (*domain.Account, error) {
	if err := validateAmount(currency, amount); err != nil {
		return nil, err
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	var account *domain.Account
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		account, err = s.ensureAccount(txCtx, userID, currency)
		if err != nil {
			return err
		}
		account.Credit(amount)
		return s.accounts.Save(txCtx, account)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "入金完成", "user_id", userID, "currency", currency, "amount", amount)
	return account, nil
}

// Withdraw 出金。余额不足整体拒绝，余额不会为负。
func (s *TradingService) Withdraw(ctx context.Context, userID, currency string, amount decimal.Decimal) (*domain.Account, error) {
	if err := validateAmount(currency, amount); err != nil {
		return nil, err
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	var account *domain.Account
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		account, err = s.ensureAccount(txCtx, userID, currency)
		if err != nil {
			return err
		}
		if !account.CanAfford(amount) {
			return domain.ErrInsufficientFunds
		}
		account.Debit(amount)
		return s.accounts.Save(txCtx, account)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "出金完成", "user_id", userID, "currency", currency, "amount", amount)
	return account, nil
}

// GetAccounts 查询用户现金账户，首次访问时播种初始资金
func (s *TradingService) GetAccounts(ctx context.Context, userID string) ([]*domain.Account, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	var accounts []*domain.Account
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		accounts, err = s.accounts.ListByUser(txCtx, userID)
		if err != nil {
			return err
		}
		if len(accounts) > 0 {
			return nil
		}
		accounts = domain.NewSeedAccounts(userID)
		for _, a := range accounts {
			if err := s.accounts.Save(txCtx, a); err != nil {
				return err
			}
		}
		logger.Info(txCtx, "新用户账户已播种", "user_id", userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListOrders 查询用户成交记录
func (s *TradingService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ensureAccount 读取账户；用户首次出现时播种两币种初始资金后返回目标账户
func (s *TradingService) ensureAccount(ctx context.Context, userID, currency string) (*domain.Account, error) {
	account, err := s.accounts.Get(ctx, userID, currency)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	existing, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		// 用户已存在但缺这个币种的账户，补一个零余额账户
		account = &domain.Account{UserID: userID, Currency: currency, Balance: decimal.Zero}
		if err := s.accounts.Save(ctx, account); err != nil {
			return nil, err
		}
		return account, nil
	}

	for _, seeded := range domain.NewSeedAccounts(userID) {
		if err := s.accounts.Save(ctx, seeded); err != nil {
			return nil, err
		}
		if seeded.Currency == currency {
			account = seeded
		}
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	logger.Info(ctx, "新用户账户已播种", "user_id", userID)
	return account, nil
}

func (s *TradingService) reject(reason string) {
	if s.onReject != nil {
		s.onReject(reason)
	}
}

func validateAmount(currency string, amount decimal.Decimal) error {
	if currency != mddomain.CurrencyKRW && currency != mddomain.CurrencyUSD {
		return fmt.Errorf("%w: unsupported currency %q", domain.ErrInvalidAmount, currency)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrInsufficientQuantity):
		return "insufficient_quantity"
	default:
		return "error"
	}
}
