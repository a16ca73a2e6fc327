package domain

import "errors"

// 上游调用的错误分类。调用方通过 errors.Is 判断类别决定重试与状态码映射。
var (
	// ErrInvalidSymbol 代码格式非法（既不是 6 位数字也不是大写字母）
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrSymbolNotFound 上游查无此代码
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrAuthExpired 访问令牌失效，客户端内部强制刷新后重试一次
	ErrAuthExpired = errors.New("upstream auth expired")
	// ErrRateLimited 上游限流
	ErrRateLimited = errors.New("upstream rate limited")
	// ErrTimeout 上游调用超时
	ErrTimeout = errors.New("upstream timeout")
	// ErrUnavailable 其他上游故障
	ErrUnavailable = errors.New("upstream unavailable")
)
