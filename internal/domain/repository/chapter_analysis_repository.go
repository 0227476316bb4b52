// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-ai-api/internal/domain/entity"
)

// ChapterAnalysisRepository 章节分析仓储接口
type ChapterAnalysisRepository interface {
	// Upsert 按 chapter_id 插入或覆盖分析结果
	Upsert(ctx context.Context, analysis *entity.ChapterAnalysis) error

	// GetByChapter 根据章节 ID 获取分析结果
	GetByChapter(ctx context.Context, chapterID string) (*entity.ChapterAnalysis, error)

	// DeleteByChapter 删除某章节的分析结果
	DeleteByChapter(ctx context.Context, chapterID string) error
}

// AnalysisTaskRepository 分析任务仓储接口
type AnalysisTaskRepository interface {
	// Create 创建分析任务
	Create(ctx context.Context, task *entity.AnalysisTask) error

	// GetByID 根据 ID 获取分析任务
	GetByID(ctx context.Context, id string) (*entity.AnalysisTask, error)

	// Update 更新分析任务
	Update(ctx context.Context, task *entity.AnalysisTask) error

	// ListRunningOlderThan 获取所有处于 running 且超过阈值的任务（用于自动恢复批量扫描）
	ListRunningOlderThan(ctx context.Context, seconds int) ([]*entity.AnalysisTask, error)

	// ListByChapter 获取某章节的历史分析任务
	ListByChapter(ctx context.Context, chapterID string) ([]*entity.AnalysisTask, error)
}

// BatchGenerationTaskRepository 批量生成任务仓储接口
type BatchGenerationTaskRepository interface {
	// Create 创建批量生成任务
	Create(ctx context.Context, task *entity.BatchGenerationTask) error

	// GetByID 根据 ID 获取批量生成任务
	GetByID(ctx context.Context, id string) (*entity.BatchGenerationTask, error)

	// Update 更新批量生成任务
	Update(ctx context.Context, task *entity.BatchGenerationTask) error

	// ListByProject 获取项目下的批量生成任务
	ListByProject(ctx context.Context, projectID string) ([]*entity.BatchGenerationTask, error)
}
