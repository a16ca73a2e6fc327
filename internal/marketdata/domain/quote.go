// Package domain 行情服务的领域模型：报价值对象、市场推断、上游错误分类
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Market 市场类型
type Market string

const (
	// MarketDomestic 国内市场（韩国，KRW 计价）
	MarketDomestic Market = "DOMESTIC"
	// MarketOverseas 海外市场（美国，USD 计价）
	MarketOverseas Market = "OVERSEAS"
)

const (
	CurrencyKRW = "KRW"
	CurrencyUSD = "USD"

	// ExchangeKRX 国内交易所代码
	ExchangeKRX = "KRX"
	// ExchangeNASDefault 海外报价未指定交易所时的默认值
	ExchangeNASDefault = "NAS"
)

// Quote 报价值对象。只存在于缓存中，从不落库。
type Quote struct {
	// Symbol 证券代码（国内 6 位数字，海外大写字母）
	Symbol string `json:"symbol"`
	// Exchange 交易所代码
	Exchange string `json:"exchange"`
	// Price 现价
	Price decimal.Decimal `json:"price"`
	// Change 涨跌额
	Change decimal.Decimal `json:"change"`
	// ChangeRate 涨跌幅（百分比）
	ChangeRate decimal.Decimal `json:"change_rate"`
	// Currency 计价货币
	Currency string `json:"currency"`
	// FetchedAt 上游返回时间
	FetchedAt time.Time `json:"fetched_at"`
}

// ResolveMarket 从证券代码推断市场。分类始终由代码派生，不冗余存储。
// 6 位 ASCII 数字为国内（KRW），一个以上大写字母为海外（USD）。
func ResolveMarket(symbol string) (Market, error) {
	if isDigits(symbol) {
		return MarketDomestic, nil
	}
	if isUpperLetters(symbol) {
		return MarketOverseas, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
}

// CurrencyOf 市场对应的计价货币
func (m Market) CurrencyOf() string {
	if m == MarketDomestic {
		return CurrencyKRW
	}
	return CurrencyUSD
}

// DefaultExchange 市场对应的默认交易所
func (m Market) DefaultExchange() string {
	if m == MarketDomestic {
		return ExchangeKRX
	}
	return ExchangeNASDefault
}

func isDigits(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isUpperLetters(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
