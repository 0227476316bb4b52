// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"z-novel-ai-api/internal/domain/entity"
)

// CreateOutlineRequest 创建大纲节点请求
type CreateOutlineRequest struct {
	Title   string                 `json:"title" binding:"required,max=255"`
	Summary string                 `json:"summary" binding:"max=5000"`
	Payload *entity.OutlinePayload `json:"payload,omitempty"`
}

// UpdateOutlineRequest 更新大纲节点请求
type UpdateOutlineRequest struct {
	Title   *string                `json:"title,omitempty" binding:"omitempty,max=255"`
	Summary *string                `json:"summary,omitempty" binding:"omitempty,max=5000"`
	Payload *entity.OutlinePayload `json:"payload,omitempty"`
}

// ReorderOutlinesRequest 批量重排大纲请求，OrderedIDs 为新顺序下的大纲 ID 列表
type ReorderOutlinesRequest struct {
	OrderedIDs []string `json:"ordered_ids" binding:"required,min=1"`
}

// OutlineResponse 大纲节点响应
type OutlineResponse struct {
	ID         string                 `json:"id"`
	ProjectID  string                 `json:"project_id"`
	OrderIndex int                    `json:"order_index"`
	Title      string                 `json:"title"`
	Summary    string                 `json:"summary,omitempty"`
	Payload    *entity.OutlinePayload `json:"payload,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// OutlineListResponse 大纲列表响应
type OutlineListResponse struct {
	Items []OutlineResponse `json:"items"`
}

// ToOutlineEntity 转换为大纲实体
func (r *CreateOutlineRequest) ToOutlineEntity(projectID string, orderIndex int) *entity.Outline {
	o := entity.NewOutline(projectID, orderIndex, r.Title, r.Summary)
	if r.Payload != nil {
		o.Payload = r.Payload
	}
	return o
}

// ApplyToOutline 将更新请求应用到大纲实体
func (r *UpdateOutlineRequest) ApplyToOutline(o *entity.Outline) {
	if r.Title != nil {
		o.Title = *r.Title
	}
	if r.Summary != nil {
		o.Summary = *r.Summary
	}
	if r.Payload != nil {
		o.Payload = r.Payload
	}
	o.UpdatedAt = time.Now()
}

// ToOutlineResponse 转换为大纲响应
func ToOutlineResponse(o *entity.Outline) OutlineResponse {
	return OutlineResponse{
		ID:         o.ID,
		ProjectID:  o.ProjectID,
		OrderIndex: o.OrderIndex,
		Title:      o.Title,
		Summary:    o.Summary,
		Payload:    o.Payload,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

// ToOutlineListResponse 转换为大纲列表响应
func ToOutlineListResponse(outlines []*entity.Outline) OutlineListResponse {
	items := make([]OutlineResponse, 0, len(outlines))
	for _, o := range outlines {
		items = append(items, ToOutlineResponse(o))
	}
	return OutlineListResponse{Items: items}
}
