// Package http 交易服务的 HTTP 接入层
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/stocktrading/internal/marketdata/domain"
	"github.com/wyfcoding/stocktrading/internal/trading/application"
	"github.com/wyfcoding/stocktrading/internal/trading/domain"
	"github.com/wyfcoding/stocktrading/pkg/logger"
	"github.com/wyfcoding/stocktrading/pkg/money"
	"github.com/wyfcoding/stocktrading/pkg/response"
)

// TradingHandler 交易 HTTP 处理器
type TradingHandler struct {
	service *application.TradingService
}

// NewTradingHandler 创建交易处理器
func NewTradingHandler(service *application.TradingService) *TradingHandler {
	return &TradingHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *TradingHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders", h.ListOrders)
	r.GET("/accounts/:uid", h.GetAccounts)
	r.POST("/accounts/deposit", h.Deposit)
	r.POST("/accounts/withdraw", h.Withdraw)
}

// CreateOrderRequest 下单入参
type CreateOrderRequest struct {
	UserID   string `json:"uid" binding:"required"`
	Symbol   string `json:"symbol" binding:"required"`
	Side     string `json:"side" binding:"required"`
	Quantity string `json:"quantity" binding:"required"`
}

// OrderDTO 成交记录出参
type OrderDTO struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"uid"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Quantity   string `json:"quantity"`
	Price      string `json:"price"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	ExecutedAt string `json:"executed_at"`
}

// AccountDTO 现金账户出参
type AccountDTO struct {
	UserID   string `json:"uid"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

// TransferRequest 出入金入参
type TransferRequest struct {
	UserID   string `json:"uid" binding:"required"`
	Currency string `json:"currency" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
}

// CreateOrder 市价单即时成交
// POST /api/v1/orders
func (h *TradingHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body")
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid quantity")
		return
	}

	order, err := h.service.ExecuteOrder(c.Request.Context(), application.ExecuteOrderCommand{
		UserID:   req.UserID,
		Symbol:   req.Symbol,
		Side:     domain.Side(req.Side),
		Quantity: quantity,
	})
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	response.Success(c, toOrderDTO(order))
}

// ListOrders 用户成交记录，按时间倒序
// GET /api/v1/orders?uid=u1
func (h *TradingHandler) ListOrders(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "uid is required")
		return
	}
	orders, err := h.service.ListOrders(c.Request.Context(), uid)
	if err != nil {
		logger.Error(c.Request.Context(), "查询成交记录失败", "uid", uid, "error", err)
		response.InternalError(c)
		return
	}
	dtos := make([]*OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o)
	}
	response.Success(c, dtos)
}

// GetAccounts 用户现金账户余额
// GET /api/v1/accounts/:uid
func (h *TradingHandler) GetAccounts(c *gin.Context) {
	uid := c.Param("uid")
	accounts, err := h.service.GetAccounts(c.Request.Context(), uid)
	if err != nil {
		logger.Error(c.Request.Context(), "查询账户失败", "uid", uid, "error", err)
		response.InternalError(c)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	response.Success(c, dtos)
}

// Deposit 入金
// POST /api/v1/accounts/deposit
func (h *TradingHandler) Deposit(c *gin.Context) {
	h.transfer(c, h.service.Deposit)
}

// Withdraw 出金
// POST /api/v1/accounts/withdraw
func (h *TradingHandler) Withdraw(c *gin.Context) {
	h.transfer(c, h.service.Withdraw)
}

func (h *TradingHandler) transfer(
	c *gin.Context,
	op func(ctx context.Context, userID, currency string, amount decimal.Decimal) (*domain.Account, error),
) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid amount")
		return
	}

	account, err := op(c.Request.Context(), req.UserID, req.Currency, amount)
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	response.Success(c, toAccountDTO(account))
}

func (h *TradingHandler) writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidOrder), errors.Is(err, domain.ErrInvalidAmount):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		response.Error(c, "insufficient funds")
	case errors.Is(err, domain.ErrInsufficientQuantity):
		response.Error(c, "insufficient quantity")
	case errors.Is(err, mddomain.ErrSymbolNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, "symbol not found")
	case errors.Is(err, domain.ErrQuoteUnavailable):
		response.Error(c, "quote unavailable, order rejected")
	default:
		logger.Error(c.Request.Context(), "交易接口内部错误", "error", err)
		response.InternalError(c)
	}
}

func toOrderDTO(o *domain.Order) *OrderDTO {
	return &OrderDTO{
		OrderID:    o.OrderID,
		UserID:     o.UserID,
		Symbol:     o.Symbol,
		Side:       string(o.Side),
		Quantity:   o.Quantity.String(),
		Price:      money.Format(o.Price, o.Currency),
		Amount:     money.Format(o.Notional(), o.Currency),
		Currency:   o.Currency,
		ExecutedAt: o.ExecutedAt.Format(time.RFC3339),
	}
}

func toAccountDTO(a *domain.Account) AccountDTO {
	return AccountDTO{
		UserID:   a.UserID,
		Currency: a.Currency,
		Balance:  money.Format(a.Balance, a.Currency),
	}
}
