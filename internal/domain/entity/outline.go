// Package entity 定义领域实体
package entity

import (
	"time"
)

// OutlinePayload 大纲结构化负载
type OutlinePayload struct {
	Scenes       []string `json:"scenes,omitempty"`
	Conflict     string   `json:"conflict,omitempty"`
	Foreshadows  []string `json:"foreshadows,omitempty"`
	PlotStage    string   `json:"plot_stage,omitempty"`
}

// Outline 大纲节点实体，order_index 与 Chapter.SeqNum 一一对应
type Outline struct {
	ID          string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID   string          `json:"project_id" gorm:"type:uuid;index;not null"`
	OrderIndex  int             `json:"order_index" gorm:"not null"`
	Title       string          `json:"title" gorm:"type:varchar(255);not null"`
	Summary     string          `json:"summary,omitempty" gorm:"type:text"`
	Payload     *OutlinePayload `json:"payload,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Outline) TableName() string {
	return "outlines"
}

// NewOutline 创建新大纲节点
func NewOutline(projectID string, orderIndex int, title, summary string) *Outline {
	now := time.Now()
	return &Outline{
		ProjectID:  projectID,
		OrderIndex: orderIndex,
		Title:      title,
		Summary:    summary,
		Payload:    &OutlinePayload{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Renumber 重新赋值 order_index（用于批量重排）
func (o *Outline) Renumber(index int) {
	o.OrderIndex = index
	o.UpdatedAt = time.Now()
}
