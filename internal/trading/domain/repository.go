package domain

import "context"

// AccountRepository 现金账户仓储接口
type AccountRepository interface {
	// Get 按用户与货币查询，不存在时返回 (nil, nil)
	Get(ctx context.Context, userID, currency string) (*Account, error)
	// ListByUser 查询用户的全部账户
	ListByUser(ctx context.Context, userID string) ([]*Account, error)
	// Save 新建或更新账户
	Save(ctx context.Context, account *Account) error
}

// PositionRepository 持仓仓储接口
type PositionRepository interface {
	// Get 按用户与代码查询，不存在时返回 (nil, nil)
	Get(ctx context.Context, userID, symbol string) (*Position, error)
	// ListByUser 查询用户的全部持仓
	ListByUser(ctx context.Context, userID string) ([]*Position, error)
	// Save 新建或更新持仓
	Save(ctx context.Context, position *Position) error
}

// OrderRepository 成交记录仓储接口，只追加
type OrderRepository interface {
	Append(ctx context.Context, order *Order) error
	// ListByUser 按成交时间倒序返回用户成交记录
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
}

// TxManager 事务管理接口。fn 内通过 ctx 传递事务句柄，
// fn 返回错误时整体回滚。
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderEventPublisher 成交事件发布接口。发布失败不影响订单结果。
type OrderEventPublisher interface {
	PublishExecuted(ctx context.Context, event *OrderExecutedEvent) error
}
