// Package entity 定义领域实体
package entity

import (
	"time"
)

// WritingStyle 写作风格预设：全局预设 (ProjectID 为空) 对租户只读，项目自定义可编辑
type WritingStyle struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID    string    `json:"tenant_id,omitempty" gorm:"type:uuid;index"`
	ProjectID   string    `json:"project_id,omitempty" gorm:"type:uuid;index"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	PromptHint  string    `json:"prompt_hint,omitempty" gorm:"type:text"`
	IsGlobal    bool      `json:"is_global" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (WritingStyle) TableName() string {
	return "writing_styles"
}

// NewGlobalWritingStyle 创建全局写作风格预设（对租户只读）
func NewGlobalWritingStyle(name, description, promptHint string) *WritingStyle {
	now := time.Now()
	return &WritingStyle{
		Name:        name,
		Description: description,
		PromptHint:  promptHint,
		IsGlobal:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewProjectWritingStyle 创建项目自定义写作风格
func NewProjectWritingStyle(tenantID, projectID, name, promptHint string) *WritingStyle {
	now := time.Now()
	return &WritingStyle{
		TenantID:   tenantID,
		ProjectID:  projectID,
		Name:       name,
		PromptHint: promptHint,
		IsGlobal:   false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ProjectDefaultStyle 项目默认风格，每个项目至多一条
type ProjectDefaultStyle struct {
	ProjectID string    `json:"project_id" gorm:"type:uuid;primaryKey"`
	StyleID   string    `json:"style_id" gorm:"type:uuid;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ProjectDefaultStyle) TableName() string {
	return "project_default_styles"
}

// NewProjectDefaultStyle 创建项目默认风格绑定
func NewProjectDefaultStyle(projectID, styleID string) *ProjectDefaultStyle {
	now := time.Now()
	return &ProjectDefaultStyle{
		ProjectID: projectID,
		StyleID:   styleID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
