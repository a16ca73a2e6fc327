package domain

import "errors"

var (
	// ErrInvalidOrder 订单参数非法（方向、数量、代码格式）
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInvalidAmount 出入金金额非法
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds 现金余额不足
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientQuantity 持仓数量不足
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	// ErrQuoteUnavailable 拿不到报价，订单整体拒绝
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrAccountNotFound 账户不存在
	ErrAccountNotFound = errors.New("account not found")
)
