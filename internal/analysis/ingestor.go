// Package analysis 实现 C9 分析摄取：把章节分析 LLM 输出解析为结构化结果，
// 写入 ChapterAnalysis，并派生记忆片段供 C3 记忆服务消费。
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"z-novel-ai-api/internal/domain/entity"
	"z-novel-ai-api/internal/domain/repository"
	"z-novel-ai-api/pkg/errors"
)

// rawHook/rawForeshadow/... 镜像 analysis_v1 提示词要求模型输出的字段。
type rawHook struct {
	Excerpt  string  `json:"excerpt"`
	Strength float64 `json:"strength"`
}

type rawForeshadow struct {
	Content string `json:"content"`
	State   string `json:"state"` // planted | resolved
}

type rawPlotPoint struct {
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
}

type rawCharacterState struct {
	CharacterName string `json:"character_name"`
	StateSummary  string `json:"state_summary"`
}

type rawScene struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type rawScores struct {
	Pacing      float64 `json:"pacing"`
	Dialogue    float64 `json:"dialogue"`
	Description float64 `json:"description"`
	Overall     float64 `json:"overall"`
}

type rawAnalysis struct {
	Summary          string              `json:"summary"`
	Hooks            []rawHook           `json:"hooks"`
	Foreshadows      []rawForeshadow     `json:"foreshadows"`
	PlotPoints       []rawPlotPoint      `json:"plot_points"`
	CharacterStates  []rawCharacterState `json:"character_states"`
	Scenes           []rawScene          `json:"scenes"`
	DialogueRatio    float64             `json:"dialogue_ratio"`
	DescriptionRatio float64             `json:"description_ratio"`
	Scores           rawScores           `json:"scores"`
}

// 派生记忆片段的钩子/情节点重要度阈值，低于阈值的条目不足以值得长期记忆检索。
const (
	hookStrengthThreshold     = 6.0
	plotPointImportanceThreshold = 0.6
)

// Ingestor 解析模型的分析输出并落库。
type Ingestor struct {
	analysisRepo repository.ChapterAnalysisRepository
	fragmentRepo repository.MemoryFragmentRepository
}

// NewIngestor 创建分析摄取器。
func NewIngestor(analysisRepo repository.ChapterAnalysisRepository, fragmentRepo repository.MemoryFragmentRepository) *Ingestor {
	return &Ingestor{analysisRepo: analysisRepo, fragmentRepo: fragmentRepo}
}

// Ingest 解析 rawJSON（已经过 extractJSON 裁剪）并持久化分析结果与派生记忆片段。
// chapterContent 用于派生 chapter_summary 片段的兜底内容，以及钩子/情节点摘录的正文定位。
func (ing *Ingestor) Ingest(ctx context.Context, tenantID, projectID, chapterID string, timelineIndex int, rawJSON, chapterContent string) (*entity.ChapterAnalysis, error) {
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(rawJSON), &raw); err != nil {
		return nil, errors.Wrap(err, errors.CodeAnalysisParseError, "failed to parse chapter analysis output")
	}

	a := entity.NewChapterAnalysis(chapterID, projectID)
	a.DialogueRatio = raw.DialogueRatio
	a.DescriptionRatio = raw.DescriptionRatio
	a.Scores = &entity.AnalysisScores{
		Pacing:      raw.Scores.Pacing,
		Dialogue:    raw.Scores.Dialogue,
		Description: raw.Scores.Description,
		Overall:     raw.Scores.Overall,
	}
	for _, h := range raw.Hooks {
		a.Hooks = append(a.Hooks, strings.TrimSpace(h.Excerpt))
	}
	for _, f := range raw.Foreshadows {
		a.Foreshadows = append(a.Foreshadows, strings.TrimSpace(f.Content))
	}
	for _, p := range raw.PlotPoints {
		a.PlotPoints = append(a.PlotPoints, strings.TrimSpace(p.Content))
	}
	for _, cs := range raw.CharacterStates {
		a.CharacterStates = append(a.CharacterStates, entity.AnalysisCharacterState{
			Character: strings.TrimSpace(cs.CharacterName),
			State:     strings.TrimSpace(cs.StateSummary),
		})
	}
	for _, s := range raw.Scenes {
		a.Scenes = append(a.Scenes, entity.AnalysisScenePoint{Title: s.Title, Summary: s.Summary})
	}

	if err := ing.analysisRepo.Upsert(ctx, a); err != nil {
		return nil, fmt.Errorf("persist chapter analysis: %w", err)
	}

	// DeleteByChapter 先清空旧片段，保证重新分析（重试/人工触发）不会重复累积。
	if err := ing.fragmentRepo.DeleteByChapter(ctx, chapterID); err != nil {
		return a, fmt.Errorf("clear previous memory fragments: %w", err)
	}

	fragments := ing.deriveFragments(tenantID, projectID, chapterID, timelineIndex, raw, chapterContent)
	if len(fragments) > 0 {
		if err := ing.fragmentRepo.CreateBatch(ctx, fragments); err != nil {
			return a, fmt.Errorf("persist derived memory fragments: %w", err)
		}
	}

	return a, nil
}

func (ing *Ingestor) deriveFragments(tenantID, projectID, chapterID string, timelineIndex int, raw rawAnalysis, chapterContent string) []*entity.MemoryFragment {
	var out []*entity.MemoryFragment

	summary := strings.TrimSpace(raw.Summary)
	if summary == "" && len(raw.PlotPoints) > 0 {
		parts := make([]string, 0, 3)
		for i, p := range raw.PlotPoints {
			if i >= 3 {
				break
			}
			parts = append(parts, strings.TrimSpace(p.Content))
		}
		summary = strings.Join(parts, "；")
	}
	if summary == "" {
		summary = truncateRunesAnalysis(chapterContent, 300)
	}
	if summary != "" {
		out = append(out, entity.NewMemoryFragment(tenantID, projectID, chapterID, entity.MemoryKindChapterSummary, summary, 0.6, timelineIndex))
	}

	for _, h := range raw.Hooks {
		if h.Strength < hookStrengthThreshold {
			continue
		}
		excerpt := strings.TrimSpace(h.Excerpt)
		f := entity.NewMemoryFragment(tenantID, projectID, chapterID, entity.MemoryKindHook, excerpt, clamp01(h.Strength/10), timelineIndex)
		locateExcerpt(f, chapterContent, excerpt)
		out = append(out, f)
	}
	for _, fs := range raw.Foreshadows {
		content := strings.TrimSpace(fs.Content)
		f := entity.NewMemoryFragment(tenantID, projectID, chapterID, entity.MemoryKindForeshadow, content, 0.6, timelineIndex)
		if strings.EqualFold(fs.State, "resolved") {
			f.ForeshadowState = entity.ForeshadowStateResolved
		} else {
			f.ForeshadowState = entity.ForeshadowStatePlanted
		}
		locateExcerpt(f, chapterContent, content)
		out = append(out, f)
	}
	for _, p := range raw.PlotPoints {
		if p.Importance < plotPointImportanceThreshold {
			continue
		}
		content := strings.TrimSpace(p.Content)
		f := entity.NewMemoryFragment(tenantID, projectID, chapterID, entity.MemoryKindPlotPoint, content, clamp01(p.Importance), timelineIndex)
		locateExcerpt(f, chapterContent, content)
		out = append(out, f)
	}
	for _, cs := range raw.CharacterStates {
		content := strings.TrimSpace(cs.CharacterName) + "：" + strings.TrimSpace(cs.StateSummary)
		f := entity.NewMemoryFragment(tenantID, projectID, chapterID, entity.MemoryKindCharacterEvent, content, 0.5, timelineIndex)
		f.RelatedCharacters = []string{strings.TrimSpace(cs.CharacterName)}
		out = append(out, f)
	}

	return out
}

// locateExcerpt 在正文中定位摘录位置：先精确匹配，失败后去除标点重试，
// 再失败退化为摘录前 15 个字符的前缀匹配；全部落空则保留片段默认的 -1/0。
func locateExcerpt(f *entity.MemoryFragment, content, excerpt string) {
	if content == "" || excerpt == "" {
		return
	}
	if idx := strings.Index(content, excerpt); idx >= 0 {
		f.SetLocation(len([]rune(content[:idx])), len([]rune(excerpt)))
		return
	}
	stripped := stripPunctuation(excerpt)
	if stripped != "" {
		if idx := strings.Index(content, stripped); idx >= 0 {
			f.SetLocation(len([]rune(content[:idx])), len([]rune(stripped)))
			return
		}
	}
	prefix := truncateRunesAnalysis(excerpt, 15)
	if prefix != "" {
		if idx := strings.Index(content, prefix); idx >= 0 {
			f.SetLocation(len([]rune(content[:idx])), len([]rune(prefix)))
		}
	}
}

func stripPunctuation(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '，', '。', '、', '"', '“', '”', '‘', '’', ',', '.', '!', '?', '！', '？', ' ', '\n', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func truncateRunesAnalysis(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
