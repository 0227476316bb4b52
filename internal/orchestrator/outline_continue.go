package orchestrator

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"z-novel-ai-api/internal/domain/entity"
	"z-novel-ai-api/internal/domain/repository"
	"z-novel-ai-api/pkg/logger"
)

// rawOutlineItem 镜像 outline_complete_v1/outline_continue_v1 提示词要求模型输出的单条大纲结构。
type rawOutlineItem struct {
	OrderIndex  int      `json:"order_index"`
	Scenes      []string `json:"scenes"`
	Conflict    string   `json:"conflict"`
	Foreshadows []string `json:"foreshadows"`
	PlotStage   string   `json:"plot_stage"`
}

// OutlineContinueInput 描述 C8.2 Outline-Continue 的请求参数。
type OutlineContinueInput struct {
	TenantID        string
	ProjectID       string
	Mode            string // auto | new | continue
	TotalChapters   int
	PlotStageHint   string // development | climax | ending
	StoryDirection  string
	EnableTools     bool
	Provider        string
}

// OutlineContinueResult 汇总续写/新建产出的大纲与配对章节数量。
type OutlineContinueResult struct {
	Mode            string
	OutlinesCreated int
	ChaptersCreated int
}

// OutlineContinue 编排大纲续写：auto 模式按既有大纲是否为空选择 new/continue；
// new 模式清空既有大纲与章节后整批重建；continue 模式按 BATCH_SIZE 分批续写并逐批提交。
func (o *Orchestrator) OutlineContinue(ctx stdcontext.Context, in OutlineContinueInput) (*OutlineContinueResult, error) {
	project, err := o.projectRepo.GetByID(ctx, in.ProjectID)
	if err != nil || project == nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	existing, err := o.outlineRepo.ListByProject(ctx, in.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list existing outlines: %w", err)
	}

	mode := in.Mode
	if mode == "" || mode == "auto" {
		if len(existing) == 0 {
			mode = "new"
		} else {
			mode = "continue"
		}
	}

	worldSummary := worldSummaryFor(project)
	if strings.TrimSpace(in.PlotStageHint) != "" {
		worldSummary += fmt.Sprintf("当前剧情阶段提示：%s\n", in.PlotStageHint)
	}
	if strings.TrimSpace(in.StoryDirection) != "" {
		worldSummary += fmt.Sprintf("作者指定的走向：%s\n", in.StoryDirection)
	}

	lockCtx, release, err := o.tenants.WriteLock(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}
	defer release()

	if mode == "new" {
		return o.outlineNew(lockCtx, in, worldSummary)
	}
	return o.outlineContinueExisting(lockCtx, in, project, existing, worldSummary)
}

func worldSummaryFor(project *entity.Project) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "题材：%s\n", orDefault(project.Genre, "未设定"))
	fmt.Fprintf(&sb, "简介：%s\n", orDefault(project.Description, "未设定"))
	if project.WorldSettings != nil {
		fmt.Fprintf(&sb, "时间体系：%s；历法：%s\n", orDefault(project.WorldSettings.TimeSystem, "未设定"), orDefault(project.WorldSettings.Calendar, "未设定"))
		if len(project.WorldSettings.Locations) > 0 {
			fmt.Fprintf(&sb, "主要地点：%s\n", strings.Join(project.WorldSettings.Locations, "、"))
		}
	}
	return sb.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// outlineNew 删除项目既有的全部大纲与章节，按 outline_complete_v1 固定 5 条一次性重建，
// 若 total_chapters 大于 5 再用 outline_continue_v1 按批续写剩余部分。
func (o *Orchestrator) outlineNew(ctx stdcontext.Context, in OutlineContinueInput, worldSummary string) (*OutlineContinueResult, error) {
	if err := o.outlineRepo.DeleteByProject(ctx, in.ProjectID); err != nil {
		return nil, fmt.Errorf("delete existing outlines: %w", err)
	}
	if err := o.deleteAllChapters(ctx, in.ProjectID); err != nil {
		return nil, fmt.Errorf("delete existing chapters: %w", err)
	}

	result := &OutlineContinueResult{Mode: "new"}

	items, err := o.generateJSONArray(ctx, "outline_wizard", in.Provider, "outline_complete_v1", map[string]any{
		"world_summary":      worldSummary,
		"characters_summary": o.charactersSummary(ctx, in.ProjectID),
	}, "world_summary", o.maxRetries())
	if err != nil {
		return nil, err
	}

	created, chCreated, err := o.persistOutlineBatch(ctx, in.ProjectID, items, 0)
	if err != nil {
		return nil, err
	}
	result.OutlinesCreated += created
	result.ChaptersCreated += chCreated

	remaining := in.TotalChapters - created
	if remaining > 0 {
		continued, err := o.continueOutlineBatches(ctx, in, worldSummary, created, remaining)
		if err != nil {
			return result, err
		}
		result.OutlinesCreated += continued.OutlinesCreated
		result.ChaptersCreated += continued.ChaptersCreated
	}
	return result, nil
}

func (o *Orchestrator) outlineContinueExisting(ctx stdcontext.Context, in OutlineContinueInput, project *entity.Project, existing []*entity.Outline, worldSummary string) (*OutlineContinueResult, error) {
	startIndex, err := o.outlineRepo.GetMaxOrderIndex(ctx, in.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get max order index: %w", err)
	}
	startIndex++ // 续接下一个序号

	remaining := in.TotalChapters
	if remaining <= 0 {
		remaining = o.batchSizeFor("outlines")
	}
	return o.continueOutlineBatches(ctx, in, worldSummary, startIndex, remaining)
}

// continueOutlineBatches 用 outline_continue_v1 按 BATCH_SIZE 分批生成，逐批提交并刷新
// 续写上下文（最近章节摘要、未回收伏笔），使下一批的提示词看到上一批刚落库的结果。
func (o *Orchestrator) continueOutlineBatches(ctx stdcontext.Context, in OutlineContinueInput, worldSummary string, startIndex, remaining int) (*OutlineContinueResult, error) {
	result := &OutlineContinueResult{Mode: "continue"}
	batchSize := o.batchSizeFor("outlines")
	cursor := startIndex

	for remaining > 0 {
		n := batchSize
		if n > remaining {
			n = remaining
		}

		recentSummaries, openForeshadows := o.recentContinuationContext(ctx, in.ProjectID)

		items, err := o.generateJSONArray(ctx, "outline_continue", in.Provider, "outline_continue_v1", map[string]any{
			"world_summary":      worldSummary,
			"recent_summaries":   recentSummaries,
			"open_foreshadows":   openForeshadows,
			"start_order_index":  cursor,
			"batch_size":         n,
		}, "world_summary", o.maxRetries())
		if err != nil {
			return result, err
		}

		created, chCreated, err := o.persistOutlineBatch(ctx, in.ProjectID, items, cursor)
		if err != nil {
			return result, err
		}
		result.OutlinesCreated += created
		result.ChaptersCreated += chCreated
		cursor += created
		remaining -= n

		if created < n {
			logger.Warn(ctx, "outline batch under-returned, stopping continuation early", "requested", n, "created", created)
			break
		}
	}
	return result, nil
}

// persistOutlineBatch 解析一批大纲条目，写入 Outline 并为每条同步创建配对的草稿章节。
// baseIndex 用作模型未遵守 order_index 指令时的兜底序号来源。
func (o *Orchestrator) persistOutlineBatch(ctx stdcontext.Context, projectID string, items []json.RawMessage, baseIndex int) (int, int, error) {
	var outlines []*entity.Outline
	for i, raw := range items {
		var it rawOutlineItem
		if err := json.Unmarshal(raw, &it); err != nil {
			logger.Warn(ctx, "skip malformed outline item", "error", err.Error())
			continue
		}
		orderIndex := it.OrderIndex
		if orderIndex == 0 {
			orderIndex = baseIndex + i
		}
		title := outlineTitle(it, orderIndex)
		summary := strings.Join(it.Scenes, "；")
		outline := entity.NewOutline(projectID, orderIndex, title, summary)
		outline.Payload = &entity.OutlinePayload{
			Scenes:      it.Scenes,
			Conflict:    it.Conflict,
			Foreshadows: it.Foreshadows,
			PlotStage:   it.PlotStage,
		}
		outlines = append(outlines, outline)
	}
	if len(outlines) == 0 {
		return 0, 0, nil
	}
	if err := o.outlineRepo.CreateBatch(ctx, outlines); err != nil {
		return 0, 0, fmt.Errorf("create outline batch: %w", err)
	}

	chaptersCreated := 0
	for _, outline := range outlines {
		seq, err := o.chapterRepo.GetNextSeqNum(ctx, projectID)
		if err != nil {
			logger.Warn(ctx, "failed to allocate chapter seq for outline pairing", "error", err.Error())
			continue
		}
		chapter := entity.NewChapter(projectID, outline.ID, seq)
		chapter.Title = outline.Title
		chapter.Outline = outline.Summary
		if err := o.chapterRepo.Create(ctx, chapter); err != nil {
			logger.Warn(ctx, "failed to create paired draft chapter", "error", err.Error())
			continue
		}
		chaptersCreated++
	}
	return len(outlines), chaptersCreated, nil
}

func outlineTitle(it rawOutlineItem, orderIndex int) string {
	if len(it.Scenes) > 0 && strings.TrimSpace(it.Scenes[0]) != "" {
		return truncateRunes(it.Scenes[0], 30)
	}
	return "第" + strconv.Itoa(orderIndex+1) + "章"
}

// deleteAllChapters 清空项目下全部章节；ChapterRepository 没有 DeleteByProject，
// 按序号列出后逐条删除。
func (o *Orchestrator) deleteAllChapters(ctx stdcontext.Context, projectID string) error {
	chapters, err := o.chapterRepo.ListOrdered(ctx, projectID)
	if err != nil {
		return err
	}
	for _, ch := range chapters {
		if err := o.chapterRepo.Delete(ctx, ch.ID); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) charactersSummary(ctx stdcontext.Context, projectID string) string {
	result, err := o.entityRepo.ListByProject(ctx, projectID, nil, repository.NewPagination(1, 50))
	if err != nil || result == nil {
		return "未设定"
	}
	var sb strings.Builder
	for _, e := range result.Items {
		fmt.Fprintf(&sb, "- %s（%s）：%s\n", e.Name, e.Type, e.Description)
	}
	if sb.Len() == 0 {
		return "未设定"
	}
	return sb.String()
}

// recentContinuationContext 组装续写批次所需的最近章节摘要与未回收伏笔，
// 与记忆服务 C3 的 build_context 共享同样的数据源但面向大纲续写场景裁剪字段。
func (o *Orchestrator) recentContinuationContext(ctx stdcontext.Context, projectID string) (recentSummaries, openForeshadows string) {
	recent, err := o.chapterRepo.GetRecent(ctx, projectID, 20)
	if err == nil {
		var sb strings.Builder
		for _, ch := range recent {
			summary := strings.TrimSpace(ch.Summary)
			if summary == "" {
				summary = strings.TrimSpace(ch.Outline)
			}
			fmt.Fprintf(&sb, "第%d章《%s》：%s\n", ch.SeqNum, ch.Title, summary)
		}
		recentSummaries = sb.String()
	}
	if recentSummaries == "" {
		recentSummaries = "未设定"
	}

	fragments, err := o.fragmentRepo.ListPlantedForeshadows(ctx, projectID)
	if err == nil && len(fragments) > 0 {
		var sb strings.Builder
		for _, f := range fragments {
			sb.WriteString("- ")
			sb.WriteString(strings.TrimSpace(f.Content))
			sb.WriteString("\n")
		}
		openForeshadows = sb.String()
	}
	if openForeshadows == "" {
		openForeshadows = "未设定"
	}
	return recentSummaries, openForeshadows
}
