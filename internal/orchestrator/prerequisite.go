package orchestrator

import (
	"context"
	"fmt"
	"strings"

	apperrors "z-novel-ai-api/pkg/errors"
)

// checkChapterPrerequisites 校验目标章节之前的全部章节是否都已写有正文；
// 若存在空缺，返回缺失的章节序号列表与一个 CodePrerequisiteMissing 错误。
func (o *Orchestrator) checkChapterPrerequisites(ctx context.Context, projectID string, targetSeq int) ([]int, error) {
	chapters, err := o.chapterRepo.ListOrdered(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}

	var missing []int
	for _, ch := range chapters {
		if ch.SeqNum >= targetSeq {
			continue
		}
		if strings.TrimSpace(ch.ContentText) == "" {
			missing = append(missing, ch.SeqNum)
		}
	}
	if len(missing) > 0 {
		return missing, apperrors.New(apperrors.CodePrerequisiteMissing, "prerequisite chapters missing").
			WithDetail(fmt.Sprintf("missing content for chapters: %v", missing))
	}
	return nil, nil
}
