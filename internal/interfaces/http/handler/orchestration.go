// Package handler 提供 HTTP 请求处理器
package handler

import (
	"z-novel-ai-api/internal/orchestrator"
	"z-novel-ai-api/internal/interfaces/http/dto"
	"z-novel-ai-api/internal/interfaces/http/middleware"
	"z-novel-ai-api/internal/sse"
	"z-novel-ai-api/pkg/errors"
	"z-novel-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// OrchestrationHandler 暴露 C8 四个编排器：Chapter-Generate（流式）、
// Outline-Continue、向导三段、Chapter-Analyze。
type OrchestrationHandler struct {
	orch *orchestrator.Orchestrator
}

// NewOrchestrationHandler 创建编排处理器。
func NewOrchestrationHandler(orch *orchestrator.Orchestrator) *OrchestrationHandler {
	return &OrchestrationHandler{orch: orch}
}

type generateChapterStreamRequest struct {
	ChapterID       string   `json:"chapter_id" binding:"required"`
	StyleID         string   `json:"style_id"`
	TargetWordCount int      `json:"target_word_count"`
	EnableTools     bool     `json:"enable_tools"`
	Provider        string   `json:"provider"`
	Model           string   `json:"model"`
	Temperature     *float32 `json:"temperature"`
}

// StreamChapterGenerate 以 SSE 流式生成章节正文（chunk/prerequisite_missing/analysis_started/done 事件）。
// @Summary 流式生成章节
// @Tags Orchestration
// @Param pid path string true "项目 ID"
// @Router /v1/projects/{pid}/chapters/generate/stream [post]
func (h *OrchestrationHandler) StreamChapterGenerate(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	var req generateChapterStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	tenantID := middleware.GetTenantID(ctx)
	if tenantID == "" {
		dto.BadRequest(c, "missing tenant_id")
		return
	}

	src := h.orch.ChapterGenerate(ctx, orchestrator.ChapterGenerateInput{
		TenantID:        tenantID,
		ProjectID:       projectID,
		ChapterID:       req.ChapterID,
		StyleID:         req.StyleID,
		TargetWordCount: req.TargetWordCount,
		EnableTools:     req.EnableTools,
		Provider:        req.Provider,
		Model:           req.Model,
		Temperature:     req.Temperature,
	})
	sse.Emit(c, src)
}

type outlineContinueRequest struct {
	Mode           string `json:"mode"` // auto | new | continue
	TotalChapters  int    `json:"total_chapters"`
	PlotStageHint  string `json:"plot_stage_hint"`
	StoryDirection string `json:"story_direction"`
	EnableTools    bool   `json:"enable_tools"`
	Provider       string `json:"provider"`
}

// ContinueOutline 生成/续写项目大纲并自动创建配对的草稿章节。
// @Summary 续写大纲
// @Tags Orchestration
// @Param pid path string true "项目 ID"
// @Router /v1/projects/{pid}/outlines/continue [post]
func (h *OrchestrationHandler) ContinueOutline(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	var req outlineContinueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	tenantID := middleware.GetTenantID(ctx)
	if tenantID == "" {
		dto.BadRequest(c, "missing tenant_id")
		return
	}

	result, err := h.orch.OutlineContinue(ctx, orchestrator.OutlineContinueInput{
		TenantID:       tenantID,
		ProjectID:      projectID,
		Mode:           req.Mode,
		TotalChapters:  req.TotalChapters,
		PlotStageHint:  req.PlotStageHint,
		StoryDirection: req.StoryDirection,
		EnableTools:    req.EnableTools,
		Provider:       req.Provider,
	})
	if err != nil {
		writeOrchestrationError(c, err)
		return
	}
	dto.Success(c, result)
}

type wizardWorldRequest struct {
	Title         string `json:"title" binding:"required"`
	Theme         string `json:"theme"`
	Genre         string `json:"genre"`
	ExistingWorld string `json:"existing_world"`
	Provider      string `json:"provider"`
}

// WizardWorld 向导 W1：生成世界观并创建项目。
// @Summary 向导：生成世界观
// @Tags Orchestration
// @Router /v1/wizard/world [post]
func (h *OrchestrationHandler) WizardWorld(c *gin.Context) {
	ctx := c.Request.Context()

	var req wizardWorldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	tenantID := middleware.GetTenantID(ctx)
	ownerID := middleware.GetUserID(ctx)
	if tenantID == "" {
		dto.BadRequest(c, "missing tenant_id")
		return
	}

	project, err := h.orch.WizardWorld(ctx, orchestrator.WizardWorldInput{
		TenantID:      tenantID,
		OwnerID:       ownerID,
		Title:         req.Title,
		Theme:         req.Theme,
		Genre:         req.Genre,
		ExistingWorld: req.ExistingWorld,
		Provider:      req.Provider,
	})
	if err != nil {
		writeOrchestrationError(c, err)
		return
	}
	dto.Created(c, dto.ToProjectResponse(project))
}

type wizardCharactersRequest struct {
	TargetCount int    `json:"target_count"`
	Provider    string `json:"provider"`
}

// WizardCharacters 向导 W2：批量生成人物/组织并落库关系图谱。
// @Summary 向导：生成人物
// @Tags Orchestration
// @Param pid path string true "项目 ID"
// @Router /v1/projects/{pid}/wizard/characters [post]
func (h *OrchestrationHandler) WizardCharacters(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	var req wizardCharactersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	tenantID := middleware.GetTenantID(ctx)
	if tenantID == "" {
		dto.BadRequest(c, "missing tenant_id")
		return
	}

	result, err := h.orch.WizardCharacters(ctx, orchestrator.WizardCharactersInput{
		TenantID:    tenantID,
		ProjectID:   projectID,
		TargetCount: req.TargetCount,
		Provider:    req.Provider,
	})
	if err != nil {
		writeOrchestrationError(c, err)
		return
	}
	dto.Success(c, result)
}

type wizardOutlineRequest struct {
	Provider string `json:"provider"`
}

// WizardOutline 向导 W3：生成固定 5 章开篇大纲并创建配对草稿章节。
// @Summary 向导：生成开篇大纲
// @Tags Orchestration
// @Param pid path string true "项目 ID"
// @Router /v1/projects/{pid}/wizard/outline [post]
func (h *OrchestrationHandler) WizardOutline(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	var req wizardOutlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	tenantID := middleware.GetTenantID(ctx)
	if tenantID == "" {
		dto.BadRequest(c, "missing tenant_id")
		return
	}

	result, err := h.orch.WizardOutline(ctx, orchestrator.WizardOutlineInput{
		TenantID:  tenantID,
		ProjectID: projectID,
		Provider:  req.Provider,
	})
	if err != nil {
		writeOrchestrationError(c, err)
		return
	}
	dto.Success(c, result)
}

type analyzeChapterRequest struct {
	Provider string `json:"provider"`
}

// AnalyzeChapter 同步触发章节分析（通常由 Chapter-Generate 异步派发；此端点用于手动重试）。
// @Summary 分析章节
// @Tags Orchestration
// @Param cid path string true "章节 ID"
// @Router /v1/chapters/{cid}/analyze [post]
func (h *OrchestrationHandler) AnalyzeChapter(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := dto.BindChapterID(c)

	var req analyzeChapterRequest
	_ = c.ShouldBindJSON(&req)

	tenantID := middleware.GetTenantID(ctx)
	if tenantID == "" {
		dto.BadRequest(c, "missing tenant_id")
		return
	}

	task, err := h.orch.AnalyzeChapter(ctx, orchestrator.AnalyzeChapterInput{
		TenantID:  tenantID,
		ChapterID: chapterID,
		Provider:  req.Provider,
	})
	if err != nil {
		writeOrchestrationError(c, err)
		return
	}
	dto.Accepted(c, task)
}

// GetAnalysisTaskStatus 查询分析任务状态，查询时应用自动恢复规则。
// @Summary 查询分析任务状态
// @Tags Orchestration
// @Param tid path string true "任务 ID"
// @Router /v1/analysis-tasks/{tid} [get]
func (h *OrchestrationHandler) GetAnalysisTaskStatus(c *gin.Context) {
	ctx := c.Request.Context()
	taskID := c.Param("tid")

	task, err := h.orch.GetAnalysisTaskStatus(ctx, taskID)
	if err != nil {
		logger.Error(ctx, "failed to get analysis task status", err)
		dto.NotFound(c, "analysis task not found")
		return
	}
	dto.Success(c, task)
}

func writeOrchestrationError(c *gin.Context, err error) {
	if errors.IsAppError(err) {
		appErr := errors.AsAppError(err)
		c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
			Code:    appErr.HTTPStatus,
			Message: appErr.Message,
			TraceID: c.GetString("trace_id"),
		})
		return
	}
	logger.Error(c.Request.Context(), "orchestration error", err)
	dto.InternalError(c, err.Error())
}
