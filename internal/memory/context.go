// Package memory 实现记忆服务：记忆片段的写入、检索与章节生成上下文组装（build_context）。
package memory

import (
	"context"
	"fmt"
	"strings"

	"z-novel-ai-api/internal/application/retrieval"
	"z-novel-ai-api/internal/domain/entity"
	"z-novel-ai-api/internal/domain/repository"
	wfmodel "z-novel-ai-api/internal/workflow/model"
)

const (
	defaultRecentChapters  = 3
	defaultRelevantTopK    = 5
	defaultForeshadowLimit = 10
	defaultPlotPointWindow = 20
	defaultPlotPointTopK   = 5
)

// Service 组合章节仓储、记忆片段仓储与语义检索引擎，产出章节生成所需的上下文。
type Service struct {
	chapterRepo  repository.ChapterRepository
	entityRepo   repository.EntityRepository
	fragmentRepo repository.MemoryFragmentRepository
	retrieval    *retrieval.Engine
}

// NewService 创建记忆服务。retrieval 可为 nil，此时 relevant_memories 退化为按时间倒序检索。
func NewService(
	chapterRepo repository.ChapterRepository,
	entityRepo repository.EntityRepository,
	fragmentRepo repository.MemoryFragmentRepository,
	retrievalEngine *retrieval.Engine,
) *Service {
	return &Service{
		chapterRepo:  chapterRepo,
		entityRepo:   entityRepo,
		fragmentRepo: fragmentRepo,
		retrieval:    retrievalEngine,
	}
}

// BuildContextInput 描述待生成章节的定位信息。
type BuildContextInput struct {
	TenantID        string
	ProjectID       string
	UpcomingSeqNum  int    // 待生成章节的序号，用于圈定"此前"的记忆范围
	OutlineSummary  string // 本章大纲，作为语义检索的查询文本
}

// BuildContext 组装 C8 章节生成所需的五类上下文：最近情节回顾、相关记忆、未回收伏笔、人物状态、关键情节点。
func (s *Service) BuildContext(ctx context.Context, in BuildContextInput) (*wfmodel.ChapterMemoryContext, error) {
	if s == nil {
		return nil, fmt.Errorf("memory service not configured")
	}

	out := &wfmodel.ChapterMemoryContext{}

	if recent, err := s.recentContext(ctx, in.ProjectID, in.UpcomingSeqNum); err == nil {
		out.RecentContext = recent
	}

	if relevant, err := s.relevantMemories(ctx, in); err == nil {
		out.RelevantMemories = relevant
	}

	if foreshadows, err := s.foreshadows(ctx, in.ProjectID); err == nil {
		out.Foreshadows = foreshadows
	}

	if states, err := s.characterStates(ctx, in.ProjectID); err == nil {
		out.CharacterStates = states
	}

	if points, err := s.plotPoints(ctx, in.ProjectID, in.UpcomingSeqNum); err == nil {
		out.PlotPoints = points
	}

	return out, nil
}

func (s *Service) recentContext(ctx context.Context, projectID string, beforeSeq int) (string, error) {
	chapters, err := s.chapterRepo.ListOrdered(ctx, projectID)
	if err != nil {
		return "", err
	}

	var preceding []*entity.Chapter
	for _, ch := range chapters {
		if ch.SeqNum >= beforeSeq {
			continue
		}
		preceding = append(preceding, ch)
	}
	if len(preceding) > defaultRecentChapters {
		preceding = preceding[len(preceding)-defaultRecentChapters:]
	}

	var sb strings.Builder
	for _, ch := range preceding {
		summary := strings.TrimSpace(ch.Summary)
		if summary == "" {
			summary = strings.TrimSpace(ch.Outline)
		}
		fmt.Fprintf(&sb, "第%d章《%s》：%s\n", ch.SeqNum, ch.Title, summary)
	}
	return sb.String(), nil
}

func (s *Service) relevantMemories(ctx context.Context, in BuildContextInput) (string, error) {
	query := strings.TrimSpace(in.OutlineSummary)

	if s.retrieval != nil && s.retrieval.Enabled() && query != "" {
		result, err := s.retrieval.Search(ctx, retrieval.SearchInput{
			TenantID:         in.TenantID,
			ProjectID:        in.ProjectID,
			Query:            query,
			TopK:             defaultRelevantTopK,
			CurrentStoryTime: int64(in.UpcomingSeqNum),
		})
		if err == nil && result != nil && len(result.Segments) > 0 {
			var sb strings.Builder
			for _, seg := range result.Segments {
				fmt.Fprintf(&sb, "- [%s] %s\n", seg.ChapterTitle, strings.TrimSpace(seg.Text))
			}
			return sb.String(), nil
		}
	}

	fragments, err := s.fragmentRepo.SearchByRecency(ctx, in.ProjectID, in.UpcomingSeqNum, defaultRelevantTopK)
	if err != nil {
		return "", err
	}
	return joinFragments(fragments), nil
}

func (s *Service) foreshadows(ctx context.Context, projectID string) (string, error) {
	fragments, err := s.fragmentRepo.ListPlantedForeshadows(ctx, projectID)
	if err != nil {
		return "", err
	}
	if len(fragments) > defaultForeshadowLimit {
		fragments = fragments[:defaultForeshadowLimit]
	}
	return joinFragments(fragments), nil
}

func (s *Service) characterStates(ctx context.Context, projectID string) (string, error) {
	result, err := s.entityRepo.ListByProject(ctx, projectID, &repository.EntityFilter{Type: entity.EntityTypeCharacter}, repository.NewPagination(1, 50))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, e := range result.Items {
		frag, err := s.fragmentRepo.LatestCharacterEvent(ctx, projectID, e.Name)
		if err != nil || frag == nil {
			continue
		}
		fmt.Fprintf(&sb, "- %s：%s\n", e.Name, strings.TrimSpace(frag.Content))
	}
	return sb.String(), nil
}

func (s *Service) plotPoints(ctx context.Context, projectID string, beforeSeq int) (string, error) {
	sinceSeq := beforeSeq - defaultPlotPointWindow
	if sinceSeq < 0 {
		sinceSeq = 0
	}
	fragments, err := s.fragmentRepo.TopPlotPoints(ctx, projectID, beforeSeq, sinceSeq, defaultPlotPointTopK)
	if err != nil {
		return "", err
	}
	return joinFragments(fragments), nil
}

func joinFragments(fragments []*entity.MemoryFragment) string {
	if len(fragments) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, f := range fragments {
		sb.WriteString("- ")
		sb.WriteString(strings.TrimSpace(f.Content))
		sb.WriteString("\n")
	}
	return sb.String()
}
