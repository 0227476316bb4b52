// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-ai-api/internal/domain/entity"
)

// OrganizationMembershipRepository 组织成员关系仓储接口
type OrganizationMembershipRepository interface {
	// Create 创建成员关系
	Create(ctx context.Context, membership *entity.OrganizationMembership) error

	// CreateBatch 批量创建成员关系（用于向导 W2 两阶段持久化）
	CreateBatch(ctx context.Context, memberships []*entity.OrganizationMembership) error

	// Update 更新成员关系
	Update(ctx context.Context, membership *entity.OrganizationMembership) error

	// Delete 删除成员关系
	Delete(ctx context.Context, id string) error

	// ListByProject 获取项目下的成员关系
	ListByProject(ctx context.Context, projectID string) ([]*entity.OrganizationMembership, error)

	// ListByCharacter 获取某角色的成员关系
	ListByCharacter(ctx context.Context, characterID string) ([]*entity.OrganizationMembership, error)

	// ListByOrganization 获取某组织的成员关系
	ListByOrganization(ctx context.Context, organizationID string) ([]*entity.OrganizationMembership, error)
}
