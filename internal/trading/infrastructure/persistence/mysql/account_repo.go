package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/stocktrading/internal/trading/domain"
	"github.com/wyfcoding/stocktrading/pkg/db"
)

// AccountRepository 现金账户仓储的 MySQL 实现
type AccountRepository struct {
	db *db.DB
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(database *db.DB) *AccountRepository {
	return &AccountRepository{db: database}
}

// Get 按用户与货币查询账户，不存在时返回 (nil, nil)
func (r *AccountRepository) Get(ctx context.Context, userID, currency string) (*domain.Account, error) {
	var account domain.Account
	err := session(ctx, r.db).
		Where("user_id = ? AND currency = ?", userID, currency).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ListByUser 查询用户的全部账户
func (r *AccountRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := session(ctx, r.db).
		Where("user_id = ?", userID).
		Order("currency").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// Save 新建或更新账户
func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	return session(ctx, r.db).Save(account).Error
}
