package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "z-novel-ai-api/internal/domain/service"
	workflowport "z-novel-ai-api/internal/workflow/port"
	workflowprompt "z-novel-ai-api/internal/workflow/prompt"
)

// GenericChain 面向非章节生成类提示词（世界观/角色/大纲/分析）的通用单轮 LLM 调用链。
// 区别于 ChapterChain：输入输出都是自由格式的变量 map/JSON 文本，不携带章节特有的校验与选项。
type GenericChain struct {
	factory  workflowport.ChatModelFactory
	registry *workflowprompt.Registry
}

// NewGenericChain 创建通用链。
func NewGenericChain(factory workflowport.ChatModelFactory) *GenericChain {
	return &GenericChain{
		factory:  factory,
		registry: workflowprompt.NewRegistry(),
	}
}

// Invoke 使用指定 PromptID 与变量渲染消息，调用模型并返回完整响应。
func (c *GenericChain) Invoke(ctx context.Context, workflowName, provider, promptID string, vars map[string]any, opts ...model.Option) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, workflowName, provider)
	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	tpl, err := c.registry.ChatTemplate(workflowprompt.PromptID(promptID))
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

// Stream 流式调用，约定与 ChapterChain.Stream 一致。
func (c *GenericChain) Stream(ctx context.Context, workflowName, provider, promptID string, vars map[string]any, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, workflowName, provider)
	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	tpl, err := c.registry.ChatTemplate(workflowprompt.PromptID(promptID))
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	return chatModel.Stream(ctx, msgs, opts...)
}
