package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	// PromptWorldV1 向导第一步：世界观/题材/基调生成
	PromptWorldV1 PromptID = "world_v1"
	// PromptCharactersBatchV1 向导第二步：按批生成人物与组织
	PromptCharactersBatchV1 PromptID = "characters_batch_v1"
	// PromptOutlineCompleteV1 向导第三步：从零生成开篇大纲
	PromptOutlineCompleteV1 PromptID = "outline_complete_v1"
	// PromptOutlineContinueV1 续写大纲：在既有大纲尾部续接
	PromptOutlineContinueV1 PromptID = "outline_continue_v1"
	// PromptChapterGenerateV1 无前情记忆上下文的章节生成
	PromptChapterGenerateV1 PromptID = "chapter_generate_v1"
	// PromptChapterGenerateWithContextV1 携带记忆上下文的章节生成
	PromptChapterGenerateWithContextV1 PromptID = "chapter_generate_with_context_v1"
	// PromptAnalysisV1 章节分析：抽取钩子/伏笔/情节点/人物状态
	PromptAnalysisV1 PromptID = "analysis_v1"
)

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	system, err := readEmbeddedText(systemPath)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(userPath)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	switch id {
	case PromptWorldV1:
		return "templates/world_v1.system.txt", "templates/world_v1.user.txt", nil
	case PromptCharactersBatchV1:
		return "templates/characters_batch_v1.system.txt", "templates/characters_batch_v1.user.txt", nil
	case PromptOutlineCompleteV1:
		return "templates/outline_complete_v1.system.txt", "templates/outline_complete_v1.user.txt", nil
	case PromptOutlineContinueV1:
		return "templates/outline_continue_v1.system.txt", "templates/outline_continue_v1.user.txt", nil
	case PromptChapterGenerateV1:
		return "templates/chapter_generate_v1.system.txt", "templates/chapter_generate_v1.user.txt", nil
	case PromptChapterGenerateWithContextV1:
		return "templates/chapter_generate_with_context_v1.system.txt", "templates/chapter_generate_with_context_v1.user.txt", nil
	case PromptAnalysisV1:
		return "templates/analysis_v1.system.txt", "templates/analysis_v1.user.txt", nil
	default:
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
