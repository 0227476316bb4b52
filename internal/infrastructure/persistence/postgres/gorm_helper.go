// Package postgres 提供 PostgreSQL 数据库访问层实现
package postgres

import (
	"context"

	"gorm.io/gorm"

	"z-novel-ai-api/internal/domain/repository"
)

// gormTxKey 与 repository.TxKey{} 并存：事务管理器在 GORM 事务提交路径下
// 把 *gorm.DB 挂在上下文里，供以 GORM 为底座的新增仓储复用，
// 而不是复用 transaction.go 里按 *sql.Tx 类型声明的 getQuerier（它的 Querier
// 接口与 Client.db 的实际类型 *gorm.DB 不匹配，是教师代码中遗留的不一致，
// 详见 DESIGN.md）。
type gormTxKey struct{}

// getGormDB 返回当前上下文中应使用的 GORM 句柄：若处于事务中返回事务句柄，
// 否则返回绑定了 ctx 的普通连接。
func getGormDB(ctx context.Context, client *Client) *gorm.DB {
	if tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	if tx, ok := ctx.Value(repository.TxKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return client.db.WithContext(ctx)
}

// GormTxManager 基于 GORM 事务的事务管理器，供新增仓储使用
type GormTxManager struct {
	client *Client
}

// NewGormTxManager 创建基于 GORM 的事务管理器
func NewGormTxManager(client *Client) *GormTxManager {
	return &GormTxManager{client: client}
}

// WithTransaction 在 GORM 事务中执行操作；已处于事务中时直接复用
func (m *GormTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}

	return m.client.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, gormTxKey{}, tx)
		return fn(txCtx)
	})
}
