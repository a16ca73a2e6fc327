package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Side 买卖方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid 方向是否合法
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Order 成交记录，只追加不修改
type Order struct {
	gorm.Model
	OrderID    string          `gorm:"type:varchar(32);not null;uniqueIndex" json:"order_id"`
	UserID     string          `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Symbol     string          `gorm:"type:varchar(16);not null" json:"symbol"`
	Side       Side            `gorm:"type:varchar(8);not null" json:"side"`
	Quantity   decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"price"`
	Currency   string          `gorm:"type:varchar(8);not null" json:"currency"`
	ExecutedAt time.Time       `gorm:"not null" json:"executed_at"`
}

// Notional 成交金额
func (o *Order) Notional() decimal.Decimal {
	return o.Price.Mul(o.Quantity)
}
