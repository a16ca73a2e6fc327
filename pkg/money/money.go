// Package money 提供展示层的金额取整。内部计算始终保留全精度，
// 只在出参序列化时按货币习惯位数做四舍五入。
package money

import "github.com/shopspring/decimal"

// DisplayScale 货币的展示小数位：KRW 无小数，其余按美元习惯两位
func DisplayScale(currency string) int32 {
	if currency == "KRW" {
		return 0
	}
	return 2
}

// Format 按货币展示位数四舍五入并输出字符串
func Format(d decimal.Decimal, currency string) string {
	return d.Round(DisplayScale(currency)).StringFixed(DisplayScale(currency))
}
