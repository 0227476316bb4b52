// Package entity 定义领域实体
package entity

import (
	"time"
)

// BatchGenerationTaskStatus 批量生成任务状态
type BatchGenerationTaskStatus string

const (
	BatchTaskStatusPending   BatchGenerationTaskStatus = "pending"
	BatchTaskStatusRunning   BatchGenerationTaskStatus = "running"
	BatchTaskStatusCompleted BatchGenerationTaskStatus = "completed"
	BatchTaskStatusFailed    BatchGenerationTaskStatus = "failed"
)

// BatchFailure 单个批次失败的记录
type BatchFailure struct {
	BatchIndex int    `json:"batch_index"`
	Reason     string `json:"reason"`
}

// BatchGenerationTask 一次章节/大纲批量生成的计划与聚合进度
type BatchGenerationTask struct {
	ID             string                    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID       string                    `json:"tenant_id" gorm:"type:uuid;index;not null"`
	ProjectID      string                    `json:"project_id" gorm:"type:uuid;index;not null"`
	Kind           string                    `json:"kind" gorm:"type:varchar(50);not null"` // chapters | outlines
	TotalRequested int                       `json:"total_requested"`
	TotalCommitted int                       `json:"total_committed"`
	BatchSize      int                       `json:"batch_size"`
	Status         BatchGenerationTaskStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
	Failures       []BatchFailure            `json:"failures,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt      time.Time                 `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time                 `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt    *time.Time                `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (BatchGenerationTask) TableName() string {
	return "batch_generation_tasks"
}

// NewBatchGenerationTask 创建新的批量生成任务
func NewBatchGenerationTask(tenantID, projectID, kind string, totalRequested, batchSize int) *BatchGenerationTask {
	now := time.Now()
	return &BatchGenerationTask{
		TenantID:       tenantID,
		ProjectID:      projectID,
		Kind:           kind,
		TotalRequested: totalRequested,
		BatchSize:      batchSize,
		Status:         BatchTaskStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// RecordBatchCommit 记录一个批次已提交的条目数
func (t *BatchGenerationTask) RecordBatchCommit(committed int) {
	t.TotalCommitted += committed
	t.Status = BatchTaskStatusRunning
	t.UpdatedAt = time.Now()
}

// RecordBatchFailure 记录一个批次失败，保留此前已提交的批次（部分提交策略）
func (t *BatchGenerationTask) RecordBatchFailure(batchIndex int, reason string) {
	t.Failures = append(t.Failures, BatchFailure{BatchIndex: batchIndex, Reason: reason})
	t.UpdatedAt = time.Now()
}

// Finish 标记任务结束：有失败批次则 failed，否则 completed
func (t *BatchGenerationTask) Finish() {
	now := time.Now()
	if len(t.Failures) > 0 {
		t.Status = BatchTaskStatusFailed
	} else {
		t.Status = BatchTaskStatusCompleted
	}
	t.CompletedAt = &now
	t.UpdatedAt = now
}
