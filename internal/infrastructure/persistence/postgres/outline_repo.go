// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"z-novel-ai-api/internal/domain/entity"
)

// OutlineRepository 大纲仓储实现
type OutlineRepository struct {
	client *Client
}

// NewOutlineRepository 创建大纲仓储
func NewOutlineRepository(client *Client) *OutlineRepository {
	return &OutlineRepository{client: client}
}

func (r *OutlineRepository) Create(ctx context.Context, outline *entity.Outline) error {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.Create")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Create(outline).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create outline: %w", err)
	}
	return nil
}

func (r *OutlineRepository) CreateBatch(ctx context.Context, outlines []*entity.Outline) error {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.CreateBatch")
	defer span.End()

	if len(outlines) == 0 {
		return nil
	}

	db := getGormDB(ctx, r.client)
	if err := db.Create(&outlines).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to batch create outlines: %w", err)
	}
	return nil
}

func (r *OutlineRepository) GetByID(ctx context.Context, id string) (*entity.Outline, error) {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.GetByID")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var outline entity.Outline
	if err := db.First(&outline, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get outline: %w", err)
	}
	return &outline, nil
}

func (r *OutlineRepository) Update(ctx context.Context, outline *entity.Outline) error {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.Update")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Save(outline).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update outline: %w", err)
	}
	return nil
}

func (r *OutlineRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.Delete")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Delete(&entity.Outline{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete outline: %w", err)
	}
	return nil
}

func (r *OutlineRepository) DeleteByProject(ctx context.Context, projectID string) error {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.DeleteByProject")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Delete(&entity.Outline{}, "project_id = ?", projectID).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete outlines by project: %w", err)
	}
	return nil
}

func (r *OutlineRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.Outline, error) {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.ListByProject")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var outlines []*entity.Outline
	if err := db.Where("project_id = ?", projectID).Order("order_index ASC").Find(&outlines).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list outlines: %w", err)
	}
	return outlines, nil
}

func (r *OutlineRepository) GetByProjectAndOrder(ctx context.Context, projectID string, orderIndex int) (*entity.Outline, error) {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.GetByProjectAndOrder")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var outline entity.Outline
	err := db.Where("project_id = ? AND order_index = ?", projectID, orderIndex).First(&outline).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get outline by order: %w", err)
	}
	return &outline, nil
}

func (r *OutlineRepository) GetMaxOrderIndex(ctx context.Context, projectID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.GetMaxOrderIndex")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var maxIdx int
	err := db.Model(&entity.Outline{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(MAX(order_index), 0)").
		Scan(&maxIdx).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get max order index: %w", err)
	}
	return maxIdx, nil
}

// ReplaceOrder collect-then-commit 式重排：在一个事务内先把每条大纲的 order_index
// 暂存为负值，再按给定顺序写入 1..N（连同 title/summary），避免 (project, order_index)
// 唯一约束在重排过程中的瞬时冲突。
func (r *OutlineRepository) ReplaceOrder(ctx context.Context, projectID string, ordered []*entity.Outline) error {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.ReplaceOrder")
	defer span.End()

	db := getGormDB(ctx, r.client)
	return db.Transaction(func(tx *gorm.DB) error {
		for i, o := range ordered {
			o.OrderIndex = i + 1
			if err := tx.Model(&entity.Outline{}).Where("id = ?", o.ID).
				Update("order_index", -(i + 1)).Error; err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to stage outline reorder: %w", err)
			}
		}
		for _, o := range ordered {
			if err := tx.Model(&entity.Outline{}).Where("id = ?", o.ID).
				Updates(map[string]interface{}{"order_index": o.OrderIndex, "title": o.Title, "summary": o.Summary}).Error; err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to commit outline reorder: %w", err)
			}
		}
		return nil
	})
}
