// Package mysql 交易服务的 MySQL 持久化实现
package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/wyfcoding/stocktrading/pkg/db"
)

type txKey struct{}

// TxManager 基于 GORM 的事务管理，实现 domain.TxManager。
// 事务句柄通过 ctx 传递，仓储方法在同一事务内取到同一个 *gorm.DB。
type TxManager struct {
	db *db.DB
}

// NewTxManager 创建事务管理器
func NewTxManager(database *db.DB) *TxManager {
	return &TxManager{db: database}
}

// WithTx 在单个数据库事务内执行 fn，fn 返回错误时整体回滚
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// session 返回 ctx 中的事务句柄，不在事务内时退回普通连接
func session(ctx context.Context, fallback *db.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.DB.WithContext(ctx)
}
