package mysql

import (
	"context"

	"github.com/wyfcoding/stocktrading/internal/trading/domain"
	"github.com/wyfcoding/stocktrading/pkg/db"
)

// OrderRepository 成交记录仓储的 MySQL 实现，只追加
type OrderRepository struct {
	db *db.DB
}

// NewOrderRepository 创建成交记录仓储
func NewOrderRepository(database *db.DB) *OrderRepository {
	return &OrderRepository{db: database}
}

// Append 追加一条成交记录
func (r *OrderRepository) Append(ctx context.Context, order *domain.Order) error {
	return session(ctx, r.db).Create(order).Error
}

// ListByUser 按成交时间倒序返回用户成交记录
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := session(ctx, r.db).
		Where("user_id = ?", userID).
		Order("executed_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
