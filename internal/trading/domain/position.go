package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Position 持仓，每个用户每只证券一行。均价采用移动加权平均。
type Position struct {
	gorm.Model
	UserID   string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_symbol" json:"user_id"`
	Symbol   string          `gorm:"type:varchar(16);not null;uniqueIndex:idx_user_symbol" json:"symbol"`
	Currency string          `gorm:"type:varchar(8);not null" json:"currency"`
	Quantity decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"quantity"`
	AvgPrice decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"avg_price"`
}

// ApplyBuy 买入后更新数量与加权均价：
// avg' = (avg*qty + price*amount) / (qty+amount)
func (p *Position) ApplyBuy(quantity, price decimal.Decimal) {
	if p.Quantity.IsZero() {
		p.Quantity = quantity
		p.AvgPrice = price
		return
	}
	total := p.AvgPrice.Mul(p.Quantity).Add(price.Mul(quantity))
	p.Quantity = p.Quantity.Add(quantity)
	p.AvgPrice = total.Div(p.Quantity)
}

// ApplySell 卖出后扣减数量。均价不变，清仓时归零。
// 数量不足时返回 ErrInsufficientQuantity 且不修改任何字段。
func (p *Position) ApplySell(quantity decimal.Decimal) error {
	if p.Quantity.LessThan(quantity) {
		return ErrInsufficientQuantity
	}
	p.Quantity = p.Quantity.Sub(quantity)
	if p.Quantity.IsZero() {
		p.AvgPrice = decimal.Zero
	}
	return nil
}

// UnrealizedPnL 按现价计算的浮动盈亏
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return price.Sub(p.AvgPrice).Mul(p.Quantity)
}

// CostBasis 持仓成本
func (p *Position) CostBasis() decimal.Decimal {
	return p.AvgPrice.Mul(p.Quantity)
}
