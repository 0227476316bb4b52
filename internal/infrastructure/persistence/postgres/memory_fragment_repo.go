// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"z-novel-ai-api/internal/domain/entity"
)

// MemoryFragmentRepository 记忆片段仓储实现（关系型存储半侧，语义检索半侧见 milvus 包）
type MemoryFragmentRepository struct {
	client *Client
}

// NewMemoryFragmentRepository 创建记忆片段仓储
func NewMemoryFragmentRepository(client *Client) *MemoryFragmentRepository {
	return &MemoryFragmentRepository{client: client}
}

func (r *MemoryFragmentRepository) CreateBatch(ctx context.Context, fragments []*entity.MemoryFragment) error {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFragmentRepository.CreateBatch")
	defer span.End()

	if len(fragments) == 0 {
		return nil
	}

	db := getGormDB(ctx, r.client)
	if err := db.Create(&fragments).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to batch create memory fragments: %w", err)
	}
	return nil
}

func (r *MemoryFragmentRepository) GetByID(ctx context.Context, id string) (*entity.MemoryFragment, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFragmentRepository.GetByID")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var fragment entity.MemoryFragment
	if err := db.First(&fragment, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get memory fragment: %w", err)
	}
	return &fragment, nil
}

// DeleteByChapter 幂等清除，重复调用不产生错误
func (r *MemoryFragmentRepository) DeleteByChapter(ctx context.Context, chapterID string) error {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFragmentRepository.DeleteByChapter")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Delete(&entity.MemoryFragment{}, "chapter_id = ?", chapterID).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete memory fragments by chapter: %w", err)
	}
	return nil
}

func (r *MemoryFragmentRepository) ListByChapter(ctx context.Context, chapterID string) ([]*entity.MemoryFragment, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFragmentRepository.ListByChapter")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var fragments []*entity.MemoryFragment
	if err := db.Where("chapter_id = ?", chapterID).Find(&fragments).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list memory fragments by chapter: %w", err)
	}
	return fragments, nil
}

func (r *MemoryFragmentRepository) ListByKind(ctx context.Context, projectID string, kind entity.MemoryFragmentKind, limit int) ([]*entity.MemoryFragment, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFragmentRepository.ListByKind")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var fragments []*entity.MemoryFragment
	q := db.Where("project_id = ? AND kind = ?", projectID, kind).Order("timeline_index DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&fragments).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list memory fragments by kind: %w", err)
	}
	return fragments, nil
}

// ListPlantedForeshadows 返回项目内 foreshadow_state=planted 的全部伏笔片段；
// 只按状态过滤，已有对应 resolved 片段的 planted 条目不会被排除。
func (r *MemoryFragmentRepository) ListPlantedForeshadows(ctx context.Context, projectID string) ([]*entity.MemoryFragment, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFragmentRepository.ListPlantedForeshadows")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var fragments []*entity.MemoryFragment
	err := db.Where("project_id = ? AND kind = ? AND foreshadow_state = ?",
		projectID, entity.MemoryKindForeshadow, entity.ForeshadowStatePlanted).
		Order("timeline_index ASC").
		Find(&fragments).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list planted foreshadows: %w", err)
	}
	return fragments, nil
}

func (r *MemoryFragmentRepository) LatestCharacterEvent(ctx context.Context, projectID, characterName string) (*entity.MemoryFragment, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFragmentRepository.LatestCharacterEvent")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var fragment entity.MemoryFragment
	err := db.Where("project_id = ? AND kind = ? AND related_characters @> ?",
		projectID, entity.MemoryKindCharacterEvent, fmt.Sprintf(`["%s"]`, characterName)).
		Order("timeline_index DESC").
		First(&fragment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get latest character event: %w", err)
	}
	return &fragment, nil
}

func (r *MemoryFragmentRepository) TopPlotPoints(ctx context.Context, projectID string, beforeTimeline, sinceTimeline, k int) ([]*entity.MemoryFragment, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFragmentRepository.TopPlotPoints")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var fragments []*entity.MemoryFragment
	err := db.Where("project_id = ? AND kind = ? AND timeline_index < ? AND timeline_index >= ?",
		projectID, entity.MemoryKindPlotPoint, beforeTimeline, sinceTimeline).
		Order("importance DESC").
		Limit(k).
		Find(&fragments).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get top plot points: %w", err)
	}
	return fragments, nil
}

// SearchByRecency 向量检索失败时的降级路径：按 timeline_index 倒序取最近 K 条
func (r *MemoryFragmentRepository) SearchByRecency(ctx context.Context, projectID string, beforeTimeline, k int) ([]*entity.MemoryFragment, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFragmentRepository.SearchByRecency")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var fragments []*entity.MemoryFragment
	err := db.Where("project_id = ? AND timeline_index < ?", projectID, beforeTimeline).
		Order("timeline_index DESC, created_at DESC").
		Limit(k).
		Find(&fragments).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search memory fragments by recency: %w", err)
	}
	return fragments, nil
}

func (r *MemoryFragmentRepository) Exists(ctx context.Context, chapterID string, kind entity.MemoryFragmentKind, timelineIndex int) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.MemoryFragmentRepository.Exists")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var count int64
	err := db.Model(&entity.MemoryFragment{}).
		Where("chapter_id = ? AND kind = ? AND timeline_index = ?", chapterID, kind, timelineIndex).
		Count(&count).Error
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check memory fragment existence: %w", err)
	}
	return count > 0, nil
}
