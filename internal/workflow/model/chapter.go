package model

type ChapterGenerateInput struct {
	ProjectTitle       string
	ProjectDescription string

	ChapterTitle   string
	ChapterOutline string

	RetrievedContext string

	// MemoryContext 非空时使用携带上下文的模板 (chapter_generate_with_context_v1)
	MemoryContext *ChapterMemoryContext

	TargetWordCount int
	WritingStyle    string
	POV             string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

type ChapterGenerateOutput struct {
	Content string
	Meta    LLMUsageMeta
}

// ChapterMemoryContext 是记忆服务 build_context 的产出，供带上下文的章节生成模板消费。
// 每个字段在对应切片为空时应以"未设定"占位，由调用方在组装时处理。
type ChapterMemoryContext struct {
	RecentContext    string
	RelevantMemories string
	Foreshadows      string
	CharacterStates  string
	PlotPoints       string
	ToolResults      string
}
