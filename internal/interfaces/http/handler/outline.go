// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"

	"z-novel-ai-api/internal/domain/entity"
	"z-novel-ai-api/internal/domain/repository"
	"z-novel-ai-api/internal/interfaces/http/dto"
	"z-novel-ai-api/pkg/errors"
	"z-novel-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// OutlineHandler 大纲处理器
type OutlineHandler struct {
	outlineRepo repository.OutlineRepository
}

// NewOutlineHandler 创建大纲处理器
func NewOutlineHandler(outlineRepo repository.OutlineRepository) *OutlineHandler {
	return &OutlineHandler{outlineRepo: outlineRepo}
}

// ListOutlines 按 order_index 升序获取项目大纲列表
func (h *OutlineHandler) ListOutlines(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	outlines, err := h.outlineRepo.ListByProject(ctx, projectID)
	if err != nil {
		logger.Error(ctx, "failed to list outlines", err)
		dto.InternalError(c, "failed to list outlines")
		return
	}

	dto.Success(c, dto.ToOutlineListResponse(outlines))
}

// CreateOutline 在项目末尾追加一个大纲节点
func (h *OutlineHandler) CreateOutline(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	var req dto.CreateOutlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	maxOrder, err := h.outlineRepo.GetMaxOrderIndex(ctx, projectID)
	if err != nil {
		logger.Error(ctx, "failed to get max order index", err)
		dto.InternalError(c, "failed to create outline")
		return
	}

	outline := req.ToOutlineEntity(projectID, maxOrder+1)
	if err := h.outlineRepo.Create(ctx, outline); err != nil {
		logger.Error(ctx, "failed to create outline", err)
		dto.InternalError(c, "failed to create outline")
		return
	}

	dto.Created(c, dto.ToOutlineResponse(outline))
}

// GetOutline 获取大纲节点详情
func (h *OutlineHandler) GetOutline(c *gin.Context) {
	ctx := c.Request.Context()
	outlineID := dto.BindOutlineID(c)

	outline, err := h.outlineRepo.GetByID(ctx, outlineID)
	if err != nil {
		logger.Error(ctx, "failed to get outline", err)
		dto.InternalError(c, "failed to get outline")
		return
	}
	if outline == nil {
		dto.NotFound(c, "outline not found")
		return
	}

	dto.Success(c, dto.ToOutlineResponse(outline))
}

// UpdateOutline 更新大纲节点
func (h *OutlineHandler) UpdateOutline(c *gin.Context) {
	ctx := c.Request.Context()
	outlineID := dto.BindOutlineID(c)

	var req dto.UpdateOutlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	outline, err := h.outlineRepo.GetByID(ctx, outlineID)
	if err != nil {
		logger.Error(ctx, "failed to get outline", err)
		dto.InternalError(c, "failed to get outline")
		return
	}
	if outline == nil {
		dto.NotFound(c, "outline not found")
		return
	}

	req.ApplyToOutline(outline)
	if err := h.outlineRepo.Update(ctx, outline); err != nil {
		logger.Error(ctx, "failed to update outline", err)
		dto.InternalError(c, "failed to update outline")
		return
	}

	dto.Success(c, dto.ToOutlineResponse(outline))
}

// DeleteOutline 删除大纲节点
func (h *OutlineHandler) DeleteOutline(c *gin.Context) {
	ctx := c.Request.Context()
	outlineID := dto.BindOutlineID(c)

	if err := h.outlineRepo.Delete(ctx, outlineID); err != nil {
		if errors.IsAppError(err) {
			appErr := errors.AsAppError(err)
			c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
				Code:    appErr.HTTPStatus,
				Message: appErr.Message,
				TraceID: c.GetString("trace_id"),
			})
			return
		}
		logger.Error(ctx, "failed to delete outline", err)
		dto.InternalError(c, "failed to delete outline")
		return
	}

	c.Status(http.StatusNoContent)
}

// ReorderOutlines 按给定 ID 顺序原子重排项目全部大纲节点
func (h *OutlineHandler) ReorderOutlines(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	var req dto.ReorderOutlinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	existing, err := h.outlineRepo.ListByProject(ctx, projectID)
	if err != nil {
		logger.Error(ctx, "failed to list outlines", err)
		dto.InternalError(c, "failed to reorder outlines")
		return
	}
	if len(req.OrderedIDs) != len(existing) {
		dto.BadRequest(c, "ordered_ids must list every outline of the project exactly once")
		return
	}
	byID := make(map[string]*entity.Outline, len(existing))
	for _, o := range existing {
		byID[o.ID] = o
	}

	ordered := make([]*entity.Outline, 0, len(req.OrderedIDs))
	for i, id := range req.OrderedIDs {
		o, ok := byID[id]
		if !ok {
			dto.BadRequest(c, "unknown or duplicate outline id: "+id)
			return
		}
		delete(byID, id)
		o.Renumber(i + 1)
		ordered = append(ordered, o)
	}

	if err := h.outlineRepo.ReplaceOrder(ctx, projectID, ordered); err != nil {
		logger.Error(ctx, "failed to replace outline order", err)
		dto.InternalError(c, "failed to reorder outlines")
		return
	}

	dto.Success(c, dto.ToOutlineListResponse(ordered))
}
