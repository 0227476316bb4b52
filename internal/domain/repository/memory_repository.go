// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-ai-api/internal/domain/entity"
)

// MemoryFragmentRepository 记忆片段仓储接口
type MemoryFragmentRepository interface {
	// CreateBatch 批量创建记忆片段
	CreateBatch(ctx context.Context, fragments []*entity.MemoryFragment) error

	// GetByID 根据 ID 获取记忆片段
	GetByID(ctx context.Context, id string) (*entity.MemoryFragment, error)

	// DeleteByChapter 幂等清除某章节的全部记忆片段
	DeleteByChapter(ctx context.Context, chapterID string) error

	// ListByChapter 获取某章节的全部记忆片段
	ListByChapter(ctx context.Context, chapterID string) ([]*entity.MemoryFragment, error)

	// ListByKind 按类型获取项目下的记忆片段
	ListByKind(ctx context.Context, projectID string, kind entity.MemoryFragmentKind, limit int) ([]*entity.MemoryFragment, error)

	// ListPlantedForeshadows 获取所有 state=planted 的伏笔；已有对应 resolved 片段的条目不排除
	ListPlantedForeshadows(ctx context.Context, projectID string) ([]*entity.MemoryFragment, error)

	// LatestCharacterEvent 获取指定人物最近一条 character_event 片段
	LatestCharacterEvent(ctx context.Context, projectID, characterName string) (*entity.MemoryFragment, error)

	// TopPlotPoints 获取最近 M 章内重要度最高的 K 条 plot_point 片段
	TopPlotPoints(ctx context.Context, projectID string, beforeTimeline, sinceTimeline, k int) ([]*entity.MemoryFragment, error)

	// SearchByRecency 按时间倒序检索（向量检索失败时的降级路径）
	SearchByRecency(ctx context.Context, projectID string, beforeTimeline, k int) ([]*entity.MemoryFragment, error)

	// Exists 判断 (chapter_id, kind, timeline_index) 去重键是否已存在
	Exists(ctx context.Context, chapterID string, kind entity.MemoryFragmentKind, timelineIndex int) (bool, error)
}
