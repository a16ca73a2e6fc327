package domain

import "time"

// OrderExecutedEvent 成交事件，发往消息队列供下游消费
type OrderExecutedEvent struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Quantity   string    `json:"quantity"`
	Price      string    `json:"price"`
	Currency   string    `json:"currency"`
	ExecutedAt time.Time `json:"executed_at"`
}

// NewOrderExecutedEvent 从成交记录构造事件
func NewOrderExecutedEvent(o *Order) *OrderExecutedEvent {
	return &OrderExecutedEvent{
		OrderID:    o.OrderID,
		UserID:     o.UserID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Quantity:   o.Quantity.String(),
		Price:      o.Price.String(),
		Currency:   o.Currency,
		ExecutedAt: o.ExecutedAt,
	}
}
