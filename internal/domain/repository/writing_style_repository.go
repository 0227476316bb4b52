// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-ai-api/internal/domain/entity"
)

// WritingStyleRepository 写作风格仓储接口
type WritingStyleRepository interface {
	// Create 创建写作风格
	Create(ctx context.Context, style *entity.WritingStyle) error

	// GetByID 根据 ID 获取写作风格
	GetByID(ctx context.Context, id string) (*entity.WritingStyle, error)

	// Update 更新写作风格（全局预设对租户不可编辑，由应用层校验）
	Update(ctx context.Context, style *entity.WritingStyle) error

	// Delete 删除写作风格
	Delete(ctx context.Context, id string) error

	// ListGlobal 获取全局预设列表
	ListGlobal(ctx context.Context) ([]*entity.WritingStyle, error)

	// ListByProject 获取项目自定义风格列表
	ListByProject(ctx context.Context, projectID string) ([]*entity.WritingStyle, error)

	// FirstGlobal 获取第一个全局预设（用于向导 W1 自动指定默认风格）
	FirstGlobal(ctx context.Context) (*entity.WritingStyle, error)
}

// ProjectDefaultStyleRepository 项目默认风格仓储接口
type ProjectDefaultStyleRepository interface {
	// Set 设置项目默认风格（存在则覆盖，保证单例不变式）
	Set(ctx context.Context, binding *entity.ProjectDefaultStyle) error

	// GetByProject 获取项目默认风格
	GetByProject(ctx context.Context, projectID string) (*entity.ProjectDefaultStyle, error)

	// DeleteByProject 删除项目默认风格绑定
	DeleteByProject(ctx context.Context, projectID string) error
}
