// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-novel-ai-api/internal/domain/entity"
)

// WritingStyleRepository 写作风格仓储实现
type WritingStyleRepository struct {
	client *Client
}

// NewWritingStyleRepository 创建写作风格仓储
func NewWritingStyleRepository(client *Client) *WritingStyleRepository {
	return &WritingStyleRepository{client: client}
}

func (r *WritingStyleRepository) Create(ctx context.Context, style *entity.WritingStyle) error {
	ctx, span := tracer.Start(ctx, "postgres.WritingStyleRepository.Create")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Create(style).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create writing style: %w", err)
	}
	return nil
}

func (r *WritingStyleRepository) GetByID(ctx context.Context, id string) (*entity.WritingStyle, error) {
	ctx, span := tracer.Start(ctx, "postgres.WritingStyleRepository.GetByID")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var style entity.WritingStyle
	if err := db.First(&style, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get writing style: %w", err)
	}
	return &style, nil
}

func (r *WritingStyleRepository) Update(ctx context.Context, style *entity.WritingStyle) error {
	ctx, span := tracer.Start(ctx, "postgres.WritingStyleRepository.Update")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Save(style).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update writing style: %w", err)
	}
	return nil
}

func (r *WritingStyleRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.WritingStyleRepository.Delete")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Delete(&entity.WritingStyle{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete writing style: %w", err)
	}
	return nil
}

func (r *WritingStyleRepository) ListGlobal(ctx context.Context) ([]*entity.WritingStyle, error) {
	ctx, span := tracer.Start(ctx, "postgres.WritingStyleRepository.ListGlobal")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var styles []*entity.WritingStyle
	if err := db.Where("is_global = ?", true).Order("created_at ASC").Find(&styles).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list global writing styles: %w", err)
	}
	return styles, nil
}

func (r *WritingStyleRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.WritingStyle, error) {
	ctx, span := tracer.Start(ctx, "postgres.WritingStyleRepository.ListByProject")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var styles []*entity.WritingStyle
	if err := db.Where("project_id = ?", projectID).Order("created_at ASC").Find(&styles).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list project writing styles: %w", err)
	}
	return styles, nil
}

func (r *WritingStyleRepository) FirstGlobal(ctx context.Context) (*entity.WritingStyle, error) {
	ctx, span := tracer.Start(ctx, "postgres.WritingStyleRepository.FirstGlobal")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var style entity.WritingStyle
	err := db.Where("is_global = ?", true).Order("created_at ASC").First(&style).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get first global writing style: %w", err)
	}
	return &style, nil
}

// ProjectDefaultStyleRepository 项目默认风格仓储实现
type ProjectDefaultStyleRepository struct {
	client *Client
}

// NewProjectDefaultStyleRepository 创建项目默认风格仓储
func NewProjectDefaultStyleRepository(client *Client) *ProjectDefaultStyleRepository {
	return &ProjectDefaultStyleRepository{client: client}
}

// Set project_id 为主键，ON CONFLICT 覆盖保证单例不变式
func (r *ProjectDefaultStyleRepository) Set(ctx context.Context, binding *entity.ProjectDefaultStyle) error {
	ctx, span := tracer.Start(ctx, "postgres.ProjectDefaultStyleRepository.Set")
	defer span.End()

	db := getGormDB(ctx, r.client)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"style_id", "updated_at"}),
	}).Create(binding).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set project default style: %w", err)
	}
	return nil
}

func (r *ProjectDefaultStyleRepository) GetByProject(ctx context.Context, projectID string) (*entity.ProjectDefaultStyle, error) {
	ctx, span := tracer.Start(ctx, "postgres.ProjectDefaultStyleRepository.GetByProject")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var binding entity.ProjectDefaultStyle
	if err := db.First(&binding, "project_id = ?", projectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get project default style: %w", err)
	}
	return &binding, nil
}

func (r *ProjectDefaultStyleRepository) DeleteByProject(ctx context.Context, projectID string) error {
	ctx, span := tracer.Start(ctx, "postgres.ProjectDefaultStyleRepository.DeleteByProject")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Delete(&entity.ProjectDefaultStyle{}, "project_id = ?", projectID).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete project default style: %w", err)
	}
	return nil
}
