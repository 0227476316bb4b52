// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-novel-ai-api/internal/domain/entity"
)

// ChapterAnalysisRepository 章节分析仓储实现
type ChapterAnalysisRepository struct {
	client *Client
}

// NewChapterAnalysisRepository 创建章节分析仓储
func NewChapterAnalysisRepository(client *Client) *ChapterAnalysisRepository {
	return &ChapterAnalysisRepository{client: client}
}

// Upsert 按 chapter_id 插入或覆盖
func (r *ChapterAnalysisRepository) Upsert(ctx context.Context, analysis *entity.ChapterAnalysis) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterAnalysisRepository.Upsert")
	defer span.End()

	db := getGormDB(ctx, r.client)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chapter_id"}},
		UpdateAll: true,
	}).Create(analysis).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert chapter analysis: %w", err)
	}
	return nil
}

func (r *ChapterAnalysisRepository) GetByChapter(ctx context.Context, chapterID string) (*entity.ChapterAnalysis, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterAnalysisRepository.GetByChapter")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var analysis entity.ChapterAnalysis
	if err := db.First(&analysis, "chapter_id = ?", chapterID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter analysis: %w", err)
	}
	return &analysis, nil
}

func (r *ChapterAnalysisRepository) DeleteByChapter(ctx context.Context, chapterID string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterAnalysisRepository.DeleteByChapter")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Delete(&entity.ChapterAnalysis{}, "chapter_id = ?", chapterID).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chapter analysis: %w", err)
	}
	return nil
}

// AnalysisTaskRepository 分析任务仓储实现
type AnalysisTaskRepository struct {
	client *Client
}

// NewAnalysisTaskRepository 创建分析任务仓储
func NewAnalysisTaskRepository(client *Client) *AnalysisTaskRepository {
	return &AnalysisTaskRepository{client: client}
}

func (r *AnalysisTaskRepository) Create(ctx context.Context, task *entity.AnalysisTask) error {
	ctx, span := tracer.Start(ctx, "postgres.AnalysisTaskRepository.Create")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Create(task).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create analysis task: %w", err)
	}
	return nil
}

func (r *AnalysisTaskRepository) GetByID(ctx context.Context, id string) (*entity.AnalysisTask, error) {
	ctx, span := tracer.Start(ctx, "postgres.AnalysisTaskRepository.GetByID")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var task entity.AnalysisTask
	if err := db.First(&task, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get analysis task: %w", err)
	}
	return &task, nil
}

func (r *AnalysisTaskRepository) Update(ctx context.Context, task *entity.AnalysisTask) error {
	ctx, span := tracer.Start(ctx, "postgres.AnalysisTaskRepository.Update")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Save(task).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update analysis task: %w", err)
	}
	return nil
}

func (r *AnalysisTaskRepository) ListRunningOlderThan(ctx context.Context, seconds int) ([]*entity.AnalysisTask, error) {
	ctx, span := tracer.Start(ctx, "postgres.AnalysisTaskRepository.ListRunningOlderThan")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var tasks []*entity.AnalysisTask
	err := db.Where("status = ? AND started_at < NOW() - (? || ' seconds')::interval", entity.AnalysisTaskRunning, seconds).
		Find(&tasks).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list stale running analysis tasks: %w", err)
	}
	return tasks, nil
}

func (r *AnalysisTaskRepository) ListByChapter(ctx context.Context, chapterID string) ([]*entity.AnalysisTask, error) {
	ctx, span := tracer.Start(ctx, "postgres.AnalysisTaskRepository.ListByChapter")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var tasks []*entity.AnalysisTask
	if err := db.Where("chapter_id = ?", chapterID).Order("created_at DESC").Find(&tasks).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list analysis tasks by chapter: %w", err)
	}
	return tasks, nil
}

// BatchGenerationTaskRepository 批量生成任务仓储实现
type BatchGenerationTaskRepository struct {
	client *Client
}

// NewBatchGenerationTaskRepository 创建批量生成任务仓储
func NewBatchGenerationTaskRepository(client *Client) *BatchGenerationTaskRepository {
	return &BatchGenerationTaskRepository{client: client}
}

func (r *BatchGenerationTaskRepository) Create(ctx context.Context, task *entity.BatchGenerationTask) error {
	ctx, span := tracer.Start(ctx, "postgres.BatchGenerationTaskRepository.Create")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Create(task).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create batch generation task: %w", err)
	}
	return nil
}

func (r *BatchGenerationTaskRepository) GetByID(ctx context.Context, id string) (*entity.BatchGenerationTask, error) {
	ctx, span := tracer.Start(ctx, "postgres.BatchGenerationTaskRepository.GetByID")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var task entity.BatchGenerationTask
	if err := db.First(&task, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get batch generation task: %w", err)
	}
	return &task, nil
}

func (r *BatchGenerationTaskRepository) Update(ctx context.Context, task *entity.BatchGenerationTask) error {
	ctx, span := tracer.Start(ctx, "postgres.BatchGenerationTaskRepository.Update")
	defer span.End()

	db := getGormDB(ctx, r.client)
	if err := db.Save(task).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update batch generation task: %w", err)
	}
	return nil
}

func (r *BatchGenerationTaskRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.BatchGenerationTask, error) {
	ctx, span := tracer.Start(ctx, "postgres.BatchGenerationTaskRepository.ListByProject")
	defer span.End()

	db := getGormDB(ctx, r.client)
	var tasks []*entity.BatchGenerationTask
	if err := db.Where("project_id = ?", projectID).Order("created_at DESC").Find(&tasks).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list batch generation tasks: %w", err)
	}
	return tasks, nil
}
