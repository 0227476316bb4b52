package orchestrator

import "strings"

// extractJSON 从模型输出中剥离代码围栏与寒暄文字，取出最大的花括号/方括号子串。
// 取代已删除的 storyutil.ExtractJSONObject：向导与分析编排器的解析前置步骤都复用它。
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = stripFences(s)

	objStart, objEnd := outermostSpan(s, '{', '}')
	arrStart, arrEnd := outermostSpan(s, '[', ']')

	switch {
	case objStart >= 0 && arrStart >= 0:
		if objEnd-objStart >= arrEnd-arrStart {
			return s[objStart : objEnd+1]
		}
		return s[arrStart : arrEnd+1]
	case objStart >= 0:
		return s[objStart : objEnd+1]
	case arrStart >= 0:
		return s[arrStart : arrEnd+1]
	default:
		return s
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		first := strings.TrimSpace(s[:nl])
		if first == "json" || first == "" {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// outermostSpan 返回第一个 open 字符到最后一个 close 字符之间的跨度；不做嵌套配对，
// 找不到 open 或最后一个 close 位于 open 之前时返回 -1,-1。
func outermostSpan(s string, open, close byte) (int, int) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return -1, -1
	}
	end := strings.LastIndexByte(s, close)
	if end < start {
		return -1, -1
	}
	return start, end
}
