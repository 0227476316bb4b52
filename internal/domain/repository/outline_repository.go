// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-ai-api/internal/domain/entity"
)

// OutlineRepository 大纲仓储接口
type OutlineRepository interface {
	// Create 创建大纲节点
	Create(ctx context.Context, outline *entity.Outline) error

	// CreateBatch 批量创建大纲节点
	CreateBatch(ctx context.Context, outlines []*entity.Outline) error

	// GetByID 根据 ID 获取大纲节点
	GetByID(ctx context.Context, id string) (*entity.Outline, error)

	// Update 更新大纲节点
	Update(ctx context.Context, outline *entity.Outline) error

	// Delete 删除大纲节点
	Delete(ctx context.Context, id string) error

	// DeleteByProject 删除项目下的所有大纲节点
	DeleteByProject(ctx context.Context, projectID string) error

	// ListByProject 按 order_index 升序获取项目大纲列表
	ListByProject(ctx context.Context, projectID string) ([]*entity.Outline, error)

	// GetByProjectAndOrder 根据项目和 order_index 获取大纲节点
	GetByProjectAndOrder(ctx context.Context, projectID string, orderIndex int) (*entity.Outline, error)

	// GetMaxOrderIndex 获取项目当前最大 order_index（无记录返回 0）
	GetMaxOrderIndex(ctx context.Context, projectID string) (int, error)

	// ReplaceOrder 原子替换项目全部大纲的顺序（collect-then-commit 重排）
	ReplaceOrder(ctx context.Context, projectID string, ordered []*entity.Outline) error
}
