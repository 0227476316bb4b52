package orchestrator

import (
	stdcontext "context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"z-novel-ai-api/internal/domain/entity"
	apperrors "z-novel-ai-api/pkg/errors"
	"z-novel-ai-api/pkg/logger"
)

// chapterAnalyzeMaxChars 超过该长度的正文在送入分析提示词前截断，避免超出模型上下文预算。
const chapterAnalyzeMaxChars = 8000

// AnalyzeChapterInput 描述 Chapter-Analyze 编排器的请求参数。
type AnalyzeChapterInput struct {
	TenantID  string
	ProjectID string
	ChapterID string
	TaskID    string // 为空时新建任务；非空时复用既有任务记录（由 Chapter-Generate 预先创建）
	Provider  string
}

// AnalyzeChapter 驱动 C9：拉取正文、调用分析提示词、解析并落库分析结果与派生记忆片段。
// 任务状态机全程可见：pending -> running -> completed/failed，供轮询端点读取进度。
func (o *Orchestrator) AnalyzeChapter(ctx stdcontext.Context, in AnalyzeChapterInput) (*entity.AnalysisTask, error) {
	chapter, err := o.chapterRepo.GetByID(ctx, in.ChapterID)
	if err != nil || chapter == nil {
		return nil, fmt.Errorf("load chapter: %w", err)
	}

	task, err := o.loadOrCreateAnalysisTask(ctx, in)
	if err != nil {
		return nil, err
	}

	task.Start()
	if err := o.taskRepo.Update(ctx, task); err != nil {
		logger.Warn(ctx, "failed to mark analysis task running", "task_id", task.ID, "error", err.Error())
	}

	content := truncateRunes(chapter.ContentText, chapterAnalyzeMaxChars)
	task.Advance(30)
	_ = o.taskRepo.Update(ctx, task)

	msg, err := o.generic.Invoke(ctx, "chapter_analyze", in.Provider, "analysis_v1", map[string]any{
		"chapter_content": content,
	})
	if err != nil {
		return o.failAnalysisTask(ctx, task, apperrors.Wrap(err, apperrors.CodeLLMUnavailable, "chapter analysis llm call failed").Error())
	}

	task.Advance(70)
	_ = o.taskRepo.Update(ctx, task)

	raw := extractJSON(msg.Content)
	_, err = o.ingestor.Ingest(ctx, in.TenantID, chapter.ProjectID, chapter.ID, chapter.SeqNum, raw, chapter.ContentText)
	if err != nil {
		var retryRaw = raw
		msg2, retryErr := o.generic.Invoke(ctx, "chapter_analyze", in.Provider, "analysis_v1", map[string]any{
			"chapter_content": content + "\n" + retryEscalationNotice,
		})
		if retryErr == nil {
			retryRaw = extractJSON(msg2.Content)
			if _, ingErr := o.ingestor.Ingest(ctx, in.TenantID, chapter.ProjectID, chapter.ID, chapter.SeqNum, retryRaw, chapter.ContentText); ingErr == nil {
				task.Complete()
				if err := o.taskRepo.Update(ctx, task); err != nil {
					logger.Warn(ctx, "failed to mark analysis task completed", "task_id", task.ID, "error", err.Error())
				}
				return task, nil
			}
		}
		return o.failAnalysisTask(ctx, task, apperrors.New(apperrors.CodeAnalysisParseError, "failed to parse chapter analysis output after retry").Error())
	}

	task.Complete()
	if err := o.taskRepo.Update(ctx, task); err != nil {
		logger.Warn(ctx, "failed to mark analysis task completed", "task_id", task.ID, "error", err.Error())
	}
	return task, nil
}

func (o *Orchestrator) loadOrCreateAnalysisTask(ctx stdcontext.Context, in AnalyzeChapterInput) (*entity.AnalysisTask, error) {
	if in.TaskID != "" {
		task, err := o.taskRepo.GetByID(ctx, in.TaskID)
		if err != nil {
			return nil, fmt.Errorf("load analysis task: %w", err)
		}
		if task != nil {
			return task, nil
		}
	}
	task := entity.NewAnalysisTask(in.TenantID, in.ProjectID, in.ChapterID)
	task.ID = uuid.NewString()
	if err := o.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create analysis task: %w", err)
	}
	return task, nil
}

func (o *Orchestrator) failAnalysisTask(ctx stdcontext.Context, task *entity.AnalysisTask, reason string) (*entity.AnalysisTask, error) {
	task.Fail(reason)
	if err := o.taskRepo.Update(ctx, task); err != nil {
		logger.Warn(ctx, "failed to persist failed analysis task", "task_id", task.ID, "error", err.Error())
	}
	return task, fmt.Errorf("%s", reason)
}

// GetAnalysisTaskStatus 查询任务状态前先应用自动恢复规则：
// running 超时视为 failed，pending 超时视为 failed，避免工作线程崩溃后任务永久卡死。
func (o *Orchestrator) GetAnalysisTaskStatus(ctx stdcontext.Context, taskID string) (*entity.AnalysisTask, error) {
	task, err := o.taskRepo.GetByID(ctx, taskID)
	if err != nil || task == nil {
		return nil, fmt.Errorf("load analysis task: %w", err)
	}
	if task.IsTerminal() {
		return task, nil
	}
	running, pending := o.analysisTimeouts()
	if task.CheckAutoRecovery(time.Now(), running, pending) {
		if err := o.taskRepo.Update(ctx, task); err != nil {
			logger.Warn(ctx, "failed to persist auto-recovered analysis task", "task_id", task.ID, "error", err.Error())
		}
	}
	return task, nil
}
