// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"z-novel-ai-api/internal/domain/entity"
)

// OrganizationMembershipRepository 组织成员关系仓储实现
type OrganizationMembershipRepository struct {
	client *Client
}

// NewOrganizationMembershipRepository 创建组织成员关系仓储
func NewOrganizationMembershipRepository(client *Client) *OrganizationMembershipRepository {
	return &OrganizationMembershipRepository{client: client}
}

func (r *OrganizationMembershipRepository) Create(ctx context.Context, membership *entity.OrganizationMembership) error {
	ctx, span := tracer.Start(ctx, "postgres.OrganizationMembershipRepository.Create")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Create(membership).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create organization membership: %w", err)
	}
	return nil
}

func (r *OrganizationMembershipRepository) CreateBatch(ctx context.Context, memberships []*entity.OrganizationMembership) error {
	ctx, span := tracer.Start(ctx, "postgres.OrganizationMembershipRepository.CreateBatch")
	defer span.End()

	if len(memberships) == 0 {
		return nil
	}

	db := getGormDB(ctx, r.client)
	if err := db.Create(&memberships).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to batch create organization memberships: %w", err)
	}
	return nil
}

func (r *OrganizationMembershipRepository) Update(ctx context.Context, membership *entity.OrganizationMembership) error {
	ctx, span := tracer.Start(ctx, "postgres.OrganizationMembershipRepository.Update")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Save(membership).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update organization membership: %w", err)
	}
	return nil
}

func (r *OrganizationMembershipRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.OrganizationMembershipRepository.Delete")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Delete(&entity.OrganizationMembership{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete organization membership: %w", err)
	}
	return nil
}

func (r *OrganizationMembershipRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.OrganizationMembership, error) {
	ctx, span := tracer.Start(ctx, "postgres.OrganizationMembershipRepository.ListByProject")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var memberships []*entity.OrganizationMembership
	if err := db.Where("project_id = ?", projectID).Find(&memberships).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list organization memberships: %w", err)
	}
	return memberships, nil
}

func (r *OrganizationMembershipRepository) ListByCharacter(ctx context.Context, characterID string) ([]*entity.OrganizationMembership, error) {
	ctx, span := tracer.Start(ctx, "postgres.OrganizationMembershipRepository.ListByCharacter")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var memberships []*entity.OrganizationMembership
	if err := db.Where("character_id = ?", characterID).Find(&memberships).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list memberships by character: %w", err)
	}
	return memberships, nil
}

func (r *OrganizationMembershipRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*entity.OrganizationMembership, error) {
	ctx, span := tracer.Start(ctx, "postgres.OrganizationMembershipRepository.ListByOrganization")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var memberships []*entity.OrganizationMembership
	if err := db.Where("organization_id = ?", organizationID).Find(&memberships).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list memberships by organization: %w", err)
	}
	return memberships, nil
}
