package orchestrator

import (
	stdcontext "context"
	"encoding/json"
	"fmt"

	"z-novel-ai-api/pkg/errors"
	"z-novel-ai-api/pkg/logger"
)

const retryEscalationNotice = "注意：上一次输出未能被解析为合法 JSON，请只输出 JSON 本身，不要包含解释、前后缀或代码围栏。"

// generateJSONArray 调用通用链渲染 promptID，解析模型输出为 JSON 数组；解析失败时
// 追加升级提示语重试，直至 maxRetries 次全部失败后返回 CodeLLMInvalidResponse。
func (o *Orchestrator) generateJSONArray(ctx stdcontext.Context, workflowName, provider, promptID string, vars map[string]any, escalateKey string, maxRetries int) ([]json.RawMessage, error) {
	var lastErr error
	attemptVars := vars

	for attempt := 0; attempt <= maxRetries; attempt++ {
		msg, err := o.generic.Invoke(ctx, workflowName, provider, promptID, attemptVars)
		if err != nil {
			lastErr = err
			logger.Warn(ctx, "orchestration llm call failed", "workflow", workflowName, "attempt", attempt, "error", err.Error())
			continue
		}

		raw := extractJSON(msg.Content)
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			lastErr = fmt.Errorf("parse json array: %w", err)
			logger.Warn(ctx, "orchestration json parse failed, escalating retry", "workflow", workflowName, "attempt", attempt)
			attemptVars = withEscalation(vars, escalateKey)
			continue
		}
		return items, nil
	}

	return nil, errors.Wrap(lastErr, errors.CodeLLMInvalidResponse, fmt.Sprintf("%s: exhausted retries parsing llm output", workflowName))
}

// generateJSONObject 与 generateJSONArray 对称，期望单个 JSON 对象。
func (o *Orchestrator) generateJSONObject(ctx stdcontext.Context, workflowName, provider, promptID string, vars map[string]any, escalateKey string, maxRetries int, out any) error {
	var lastErr error
	attemptVars := vars

	for attempt := 0; attempt <= maxRetries; attempt++ {
		msg, err := o.generic.Invoke(ctx, workflowName, provider, promptID, attemptVars)
		if err != nil {
			lastErr = err
			attemptVars = vars
			continue
		}
		raw := extractJSON(msg.Content)
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			lastErr = fmt.Errorf("parse json object: %w", err)
			attemptVars = withEscalation(vars, escalateKey)
			continue
		}
		return nil
	}
	return errors.Wrap(lastErr, errors.CodeLLMInvalidResponse, fmt.Sprintf("%s: exhausted retries parsing llm output", workflowName))
}

func withEscalation(vars map[string]any, key string) map[string]any {
	if key == "" {
		return vars
	}
	next := make(map[string]any, len(vars))
	for k, v := range vars {
		next[k] = v
	}
	if s, ok := next[key].(string); ok {
		next[key] = s + "\n" + retryEscalationNotice
	} else {
		next[key] = retryEscalationNotice
	}
	return next
}

// partitionCount 把总数 n 切分为 size 大小的批次边界 [start,end)。
func partitionCount(n, size int) [][2]int {
	if size <= 0 {
		size = 1
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
