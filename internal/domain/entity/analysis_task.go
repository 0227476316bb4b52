// Package entity 定义领域实体
package entity

import (
	"time"
)

// AnalysisTaskStatus 分析任务状态
type AnalysisTaskStatus string

const (
	AnalysisTaskPending   AnalysisTaskStatus = "pending"
	AnalysisTaskRunning   AnalysisTaskStatus = "running"
	AnalysisTaskCompleted AnalysisTaskStatus = "completed"
	AnalysisTaskFailed    AnalysisTaskStatus = "failed"
)

// AnalysisTask 章节分析后台任务，pending/running 为瞬态，completed/failed 为吸收态
type AnalysisTask struct {
	ID           string             `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID     string             `json:"tenant_id" gorm:"type:uuid;index;not null"`
	ProjectID    string             `json:"project_id" gorm:"type:uuid;index;not null"`
	ChapterID    string             `json:"chapter_id" gorm:"type:uuid;index;not null"`
	Status       AnalysisTaskStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
	Progress     int                `json:"progress" gorm:"default:0"`
	ErrorMessage string             `json:"error_message,omitempty" gorm:"type:text"`
	AutoRecovered bool              `json:"auto_recovered" gorm:"default:false"`
	CreatedAt    time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (AnalysisTask) TableName() string {
	return "analysis_tasks"
}

// NewAnalysisTask 创建新分析任务，初始状态 pending
func NewAnalysisTask(tenantID, projectID, chapterID string) *AnalysisTask {
	now := time.Now()
	return &AnalysisTask{
		TenantID:  tenantID,
		ProjectID: projectID,
		ChapterID: chapterID,
		Status:    AnalysisTaskPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start 任务进入 running，进度置 10
func (t *AnalysisTask) Start() {
	now := time.Now()
	t.Status = AnalysisTaskRunning
	t.StartedAt = &now
	t.Progress = 10
	t.UpdatedAt = now
}

// Advance 推进进度（吸收态之前的中间步骤）
func (t *AnalysisTask) Advance(progress int) {
	t.Progress = progress
	t.UpdatedAt = time.Now()
}

// Complete 任务完成，进度置 100
func (t *AnalysisTask) Complete() {
	now := time.Now()
	t.Status = AnalysisTaskCompleted
	t.Progress = 100
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// Fail 任务失败，吸收态
func (t *AnalysisTask) Fail(errMsg string) {
	now := time.Now()
	t.Status = AnalysisTaskFailed
	t.ErrorMessage = errMsg
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// IsTerminal 是否处于吸收态
func (t *AnalysisTask) IsTerminal() bool {
	return t.Status == AnalysisTaskCompleted || t.Status == AnalysisTaskFailed
}

// CheckAutoRecovery 应用自动恢复规则；返回值表示本次调用是否触发了状态迁移
func (t *AnalysisTask) CheckAutoRecovery(now time.Time, runningTimeout, pendingTimeout time.Duration) bool {
	switch t.Status {
	case AnalysisTaskRunning:
		if t.StartedAt != nil && now.Sub(*t.StartedAt) > runningTimeout {
			t.Status = AnalysisTaskFailed
			t.ErrorMessage = "timeout, auto-recovered"
			t.AutoRecovered = true
			t.CompletedAt = &now
			t.UpdatedAt = now
			return true
		}
	case AnalysisTaskPending:
		if now.Sub(t.CreatedAt) > pendingTimeout {
			t.Status = AnalysisTaskFailed
			t.ErrorMessage = "timeout, auto-recovered"
			t.AutoRecovered = true
			t.CompletedAt = &now
			t.UpdatedAt = now
			return true
		}
	}
	return false
}
