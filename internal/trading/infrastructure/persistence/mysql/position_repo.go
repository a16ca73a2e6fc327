package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/stocktrading/internal/trading/domain"
	"github.com/wyfcoding/stocktrading/pkg/db"
)

// PositionRepository 持仓仓储的 MySQL 实现
type PositionRepository struct {
	db *db.DB
}

// NewPositionRepository 创建持仓仓储
func NewPositionRepository(database *db.DB) *PositionRepository {
	return &PositionRepository{db: database}
}

// Get 按用户与代码查询持仓，不存在时返回 (nil, nil)
func (r *PositionRepository) Get(ctx context.Context, userID, symbol string) (*domain.Position, error) {
	var position domain.Position
	err := session(ctx, r.db).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		First(&position).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &position, nil
}

// ListByUser 查询用户的全部持仓
func (r *PositionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Position, error) {
	var positions []*domain.Position
	err := session(ctx, r.db).
		Where("user_id = ?", userID).
		Order("symbol").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// Save 新建或更新持仓
func (r *PositionRepository) Save(ctx context.Context, position *domain.Position) error {
	return session(ctx, r.db).Save(position).Error
}
