// Package http 组合估值服务的 HTTP 接入层
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/stocktrading/internal/portfolio/application"
	"github.com/wyfcoding/stocktrading/pkg/logger"
	"github.com/wyfcoding/stocktrading/pkg/money"
	"github.com/wyfcoding/stocktrading/pkg/response"
)

// PortfolioHandler 组合估值 HTTP 处理器
type PortfolioHandler struct {
	service *application.PortfolioService
}

// NewPortfolioHandler 创建组合估值处理器
func NewPortfolioHandler(service *application.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *PortfolioHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/portfolio/:uid", h.GetPortfolio)
}

// PositionDTO 持仓估值出参。报价不可用时 current_price 等字段为 null。
type PositionDTO struct {
	Symbol       string  `json:"symbol"`
	Currency     string  `json:"currency"`
	Quantity     string  `json:"quantity"`
	AvgPrice     string  `json:"avg_price"`
	CostBasis    string  `json:"cost_basis"`
	CurrentPrice *string `json:"current_price"`
	MarketValue  *string `json:"market_value"`
	ProfitLoss   *string `json:"profit_loss"`
}

// TotalDTO 按货币汇总出参
type TotalDTO struct {
	Currency    string `json:"currency"`
	CashBalance string `json:"cash_balance"`
	CostBasis   string `json:"cost_basis"`
	MarketValue string `json:"market_value"`
	ProfitLoss  string `json:"profit_loss"`
	Complete    bool   `json:"complete"`
}

// PortfolioDTO 组合估值出参
type PortfolioDTO struct {
	UserID    string        `json:"uid"`
	Positions []PositionDTO `json:"positions"`
	Totals    []TotalDTO    `json:"totals"`
}

// GetPortfolio 组合估值快照
// GET /api/v1/portfolio/:uid
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	uid := c.Param("uid")
	snap, err := h.service.Valuate(c.Request.Context(), uid)
	if err != nil {
		logger.Error(c.Request.Context(), "组合估值失败", "uid", uid, "error", err)
		response.InternalError(c)
		return
	}

	dto := PortfolioDTO{
		UserID:    snap.UserID,
		Positions: make([]PositionDTO, len(snap.Positions)),
		Totals:    make([]TotalDTO, len(snap.Totals)),
	}
	for i, p := range snap.Positions {
		d := PositionDTO{
			Symbol:    p.Symbol,
			Currency:  p.Currency,
			Quantity:  p.Quantity.String(),
			AvgPrice:  money.Format(p.AvgPrice, p.Currency),
			CostBasis: money.Format(p.CostBasis, p.Currency),
		}
		if p.CurrentPrice != nil {
			d.CurrentPrice = strPtr(money.Format(*p.CurrentPrice, p.Currency))
		}
		if p.MarketValue != nil {
			d.MarketValue = strPtr(money.Format(*p.MarketValue, p.Currency))
		}
		if p.ProfitLoss != nil {
			d.ProfitLoss = strPtr(money.Format(*p.ProfitLoss, p.Currency))
		}
		dto.Positions[i] = d
	}
	for i, t := range snap.Totals {
		dto.Totals[i] = TotalDTO{
			Currency:    t.Currency,
			CashBalance: money.Format(t.CashBalance, t.Currency),
			CostBasis:   money.Format(t.CostBasis, t.Currency),
			MarketValue: money.Format(t.MarketValue, t.Currency),
			ProfitLoss:  money.Format(t.ProfitLoss, t.Currency),
			Complete:    t.Valued,
		}
	}
	response.Success(c, dto)
}

func strPtr(s string) *string { return &s }
