// Package domain 交易服务的领域模型：账户、持仓、订单与账本规则
package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 新用户首次出现时的初始资金
var (
	SeedBalanceKRW = decimal.NewFromInt(10_000_000)
	SeedBalanceUSD = decimal.NewFromInt(10_000)
)

// Account 现金账户，每个用户每种货币一行
type Account struct {
	gorm.Model
	UserID   string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_currency" json:"user_id"`
	Currency string          `gorm:"type:varchar(8);not null;uniqueIndex:idx_user_currency" json:"currency"`
	Balance  decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"balance"`
}

// NewSeedAccounts 为新用户创建带初始资金的两币种账户
func NewSeedAccounts(userID string) []*Account {
	return []*Account{
		{UserID: userID, Currency: "KRW", Balance: SeedBalanceKRW},
		{UserID: userID, Currency: "USD", Balance: SeedBalanceUSD},
	}
}

// CanAfford 余额是否足以支付 amount
func (a *Account) CanAfford(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// Debit 扣减余额。调用方必须先通过 CanAfford 校验。
func (a *Account) Debit(amount decimal.Decimal) {
	a.Balance = a.Balance.Sub(amount)
}

// Credit 增加余额
func (a *Account) Credit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
}
