package orchestrator

import (
	stdcontext "context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"z-novel-ai-api/internal/domain/entity"
	"z-novel-ai-api/internal/infrastructure/messaging"
	"z-novel-ai-api/internal/memory"
	"z-novel-ai-api/internal/sse"
	wfmodel "z-novel-ai-api/internal/workflow/model"
	"z-novel-ai-api/pkg/errors"
	"z-novel-ai-api/pkg/logger"
)

const (
	defaultTargetWordCount = 3000
	minTargetWordCount     = 500
	maxTargetWordCount     = 10000
	generationHistoryCap   = 500
)

// ChapterGenerateInput 描述 C8.1 Chapter-Generate 的请求参数。
type ChapterGenerateInput struct {
	TenantID        string
	ProjectID       string
	ChapterID       string
	StyleID         string
	TargetWordCount int
	EnableTools     bool
	Provider        string
	Model           string
	Temperature     *float32
}

func clampWordCount(n int) int {
	if n <= 0 {
		return defaultTargetWordCount
	}
	if n < minTargetWordCount {
		return minTargetWordCount
	}
	if n > maxTargetWordCount {
		return maxTargetWordCount
	}
	return n
}

// ChapterGenerate 编排章节生成：前置校验 -> 记忆上下文 -> 工具预取 -> 流式生成 ->
// 落库 -> 派发后台分析任务。返回的 sse.Source 供 handler 直接交给 sse.Emit。
func (o *Orchestrator) ChapterGenerate(ctx stdcontext.Context, in ChapterGenerateInput) sse.Source {
	events := make(chan sse.Event, 32)
	done := make(chan gin.H, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(done)
		defer close(errCh)
		o.runChapterGenerate(ctx, in, events, done, errCh)
	}()

	return sse.Source{Events: events, Done: done, Err: errCh}
}

func (o *Orchestrator) runChapterGenerate(ctx stdcontext.Context, in ChapterGenerateInput, events chan<- sse.Event, done chan<- gin.H, errCh chan<- error) {
	chapter, err := o.chapterRepo.GetByID(ctx, in.ChapterID)
	if err != nil || chapter == nil {
		errCh <- errors.Wrap(err, errors.CodeChapterNotFound, "chapter not found")
		return
	}
	project, err := o.projectRepo.GetByID(ctx, chapter.ProjectID)
	if err != nil || project == nil {
		errCh <- errors.Wrap(err, errors.CodeProjectNotFound, "project not found")
		return
	}

	if missing, err := o.checkChapterPrerequisites(ctx, chapter.ProjectID, chapter.SeqNum); err != nil {
		events <- sse.Event{Name: "prerequisite_missing", Data: gin.H{"missing_chapters": missing}}
		errCh <- err
		return
	}

	targetWordCount := clampWordCount(in.TargetWordCount)
	writingStyle, pov, temperature := o.resolveStyleAndPOV(ctx, project, in.StyleID, in.Temperature)

	memCtx, err := o.memorySvc.BuildContext(ctx, memory.BuildContextInput{
		TenantID:       in.TenantID,
		ProjectID:      chapter.ProjectID,
		UpcomingSeqNum: chapter.SeqNum,
		OutlineSummary: chapter.Outline,
	})
	if err != nil {
		logger.Warn(ctx, "build chapter memory context failed, continuing without it", "error", err.Error())
		memCtx = &wfmodel.ChapterMemoryContext{}
	}

	if in.EnableTools && o.tools != nil {
		memCtx.ToolResults = o.runToolPrePass(ctx, in.TenantID, chapter)
	}

	genInput := &wfmodel.ChapterGenerateInput{
		ProjectTitle:       project.Title,
		ProjectDescription: project.Description,
		ChapterTitle:       chapter.Title,
		ChapterOutline:     chapter.Outline,
		MemoryContext:      memCtx,
		TargetWordCount:    targetWordCount,
		WritingStyle:       writingStyle,
		POV:                pov,
		Provider:           in.Provider,
		Model:              in.Model,
		Temperature:        temperature,
	}

	job := o.startGenerationJob(ctx, in.TenantID, chapter, genInput)

	reader, err := o.chapters.Stream(ctx, genInput)
	if err != nil {
		errCh <- errors.Wrap(err, errors.CodeLLMUnavailable, "chapter stream failed to start")
		o.failGenerationJob(ctx, in.TenantID, job, chapter, err)
		return
	}
	defer reader.Close()

	var content strings.Builder
	var usage wfmodel.LLMUsageMeta
	usage.Provider, usage.Model = in.Provider, in.Model
	index := 0

	for {
		if ctx.Err() != nil {
			errCh <- errors.ErrCancelled
			return
		}
		msg, recvErr := reader.Recv()
		if stderrors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			errCh <- errors.Wrap(recvErr, errors.CodeLLMTimeout, "chapter stream interrupted")
			o.failGenerationJob(ctx, in.TenantID, job, chapter, recvErr)
			return
		}
		if msg.Content != "" {
			content.WriteString(msg.Content)
			events <- sse.Event{Name: "chunk", Data: gin.H{"text": msg.Content, "index": index}}
			index++
		}
		if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
			usage.PromptTokens = msg.ResponseMeta.Usage.PromptTokens
			usage.CompletionTokens = msg.ResponseMeta.Usage.CompletionTokens
		}
	}
	usage.GeneratedAt = time.Now().UTC()
	if temperature != nil {
		usage.Temperature = float64(*temperature)
	}

	finalText := strings.TrimSpace(content.String())
	if finalText == "" {
		err := fmt.Errorf("empty chapter content generated")
		errCh <- errors.Wrap(err, errors.CodeLLMInvalidResponse, "chapter generation produced no content")
		o.failGenerationJob(ctx, in.TenantID, job, chapter, err)
		return
	}

	task, persistErr := o.persistGeneratedChapter(ctx, in.TenantID, chapter, project, finalText, usage, job, genInput.ChapterOutline)
	if persistErr != nil {
		errCh <- errors.Wrap(persistErr, errors.CodeStoreUnavailable, "failed to persist generated chapter")
		return
	}

	events <- sse.Event{Name: "analysis_started", Data: gin.H{"analysis_task_id": task.ID}}
	done <- gin.H{
		"chapter_id":       chapter.ID,
		"word_count":       len([]rune(finalText)),
		"analysis_task_id": task.ID,
	}
}

func (o *Orchestrator) resolveStyleAndPOV(ctx stdcontext.Context, project *entity.Project, styleID string, temperature *float32) (style, pov string, temp *float32) {
	if project.Settings != nil {
		style = strings.TrimSpace(project.Settings.WritingStyle)
		pov = strings.TrimSpace(project.Settings.POV)
		if temperature == nil && project.Settings.Temperature != 0 {
			t := float32(project.Settings.Temperature)
			temperature = &t
		}
	}
	if strings.TrimSpace(styleID) != "" {
		if s, err := o.writingStyleRepo.GetByID(ctx, styleID); err == nil && s != nil {
			style = s.PromptHint
		}
	}
	return style, pov, temperature
}

// runToolPrePass 在启用工具时，对租户下全部已启用插件做一次探活/列举调用，
// 把结果汇总为供章节生成模板引用的文本块；单个插件失败不影响整体生成。
func (o *Orchestrator) runToolPrePass(ctx stdcontext.Context, tenantID string, chapter *entity.Chapter) string {
	tools, err := o.tools.ListEnabled(ctx, tenantID)
	if err != nil || len(tools) == 0 {
		return ""
	}
	var sb strings.Builder
	for plugin, descriptors := range tools {
		for _, d := range descriptors {
			fmt.Fprintf(&sb, "- [%s] %s: %s\n", plugin, d.Name, d.Description)
		}
	}
	return sb.String()
}

func (o *Orchestrator) startGenerationJob(ctx stdcontext.Context, tenantID string, chapter *entity.Chapter, in *wfmodel.ChapterGenerateInput) *entity.GenerationJob {
	if o.jobRepo == nil {
		return nil
	}
	params, _ := json.Marshal(map[string]any{
		"mode":              "chapter_generate",
		"chapter_id":        chapter.ID,
		"outline":           truncateRunes(in.ChapterOutline, generationHistoryCap),
		"target_word_count": in.TargetWordCount,
		"provider":          in.Provider,
	})
	job := entity.NewGenerationJob(tenantID, chapter.ProjectID, entity.JobTypeChapterGen, params)
	job.ChapterID = chapter.ID
	job.Start()
	if err := o.jobRepo.Create(ctx, job); err != nil {
		logger.Warn(ctx, "failed to create generation job record", "error", err.Error())
		return nil
	}
	return job
}

func (o *Orchestrator) failGenerationJob(ctx stdcontext.Context, tenantID string, job *entity.GenerationJob, chapter *entity.Chapter, cause error) {
	if job == nil || o.jobRepo == nil {
		return
	}
	job.Fail(cause.Error())
	_ = o.withTenantTx(ctx, tenantID, func(txCtx stdcontext.Context) error {
		return o.jobRepo.Update(txCtx, job)
	})
}

// persistGeneratedChapter 在租户写锁下于同一事务内替换章节内容、刷新项目字数聚合、完结生成任务记录
// 并创建分析任务行；事务提交后再投递后台分析消息，投递失败只记日志。
func (o *Orchestrator) persistGeneratedChapter(
	ctx stdcontext.Context,
	tenantID string,
	chapter *entity.Chapter,
	project *entity.Project,
	content string,
	usage wfmodel.LLMUsageMeta,
	job *entity.GenerationJob,
	outline string,
) (*entity.AnalysisTask, error) {
	lockCtx, release, err := o.tenants.WriteLock(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	previousWordCount := chapter.WordCount
	var task *entity.AnalysisTask

	err = o.withTenantTx(lockCtx, tenantID, func(txCtx stdcontext.Context) error {
		chapter.SetContent(content)
		chapter.Status = entity.ChapterStatusCompleted
		chapter.GenerationMetadata = &entity.GenerationMetadata{
			Model:            usage.Model,
			Provider:         usage.Provider,
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			Temperature:      usage.Temperature,
			GeneratedAt:      usage.GeneratedAt.Format(time.RFC3339),
		}
		chapter.IncrementVersion()
		if err := o.chapterRepo.Update(txCtx, chapter); err != nil {
			return fmt.Errorf("update chapter content: %w", err)
		}

		project.UpdateWordCount(chapter.WordCount - previousWordCount)
		if err := o.projectRepo.UpdateWordCount(txCtx, project.ID, project.CurrentWordCount); err != nil {
			return fmt.Errorf("update project word count: %w", err)
		}

		if job != nil && o.jobRepo != nil {
			result, _ := json.Marshal(map[string]any{
				"chapter_id":         chapter.ID,
				"word_count":         chapter.WordCount,
				"generated_preview":  truncateRunes(content, generationHistoryCap),
				"generated_outline":  truncateRunes(outline, generationHistoryCap),
			})
			job.Complete(result)
			job.SetLLMMetrics(usage.Provider, usage.Model, usage.PromptTokens, usage.CompletionTokens)
			if err := o.jobRepo.Update(txCtx, job); err != nil {
				logger.Warn(txCtx, "failed to finalize generation job record", "error", err.Error())
			}
		}

		task = entity.NewAnalysisTask(tenantID, chapter.ProjectID, chapter.ID)
		task.ID = uuid.NewString()
		if err := o.taskRepo.Create(txCtx, task); err != nil {
			return fmt.Errorf("create analysis task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if o.producer != nil {
		if _, pubErr := o.producer.PublishAnalysisTask(ctx, &messaging.AnalysisTaskMessage{
			TaskID:    task.ID,
			TenantID:  tenantID,
			ProjectID: chapter.ProjectID,
			ChapterID: chapter.ID,
		}); pubErr != nil {
			logger.Warn(ctx, "failed to publish analysis task message, background worker will not pick it up", "error", pubErr.Error())
		}
	}
	return task, nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
