// Package quota 提供租户配额相关能力
package quota

import (
	"context"
	"fmt"
	"time"

	"z-novel-ai-api/internal/domain/entity"
	"z-novel-ai-api/internal/domain/repository"
)

// TokenQuotaExceededError 表示租户 Token 日配额已耗尽
type TokenQuotaExceededError struct {
	TenantID string
	Max      int64
	Used     int64
}

func (e TokenQuotaExceededError) Error() string {
	return fmt.Sprintf("token quota exceeded: tenant=%s used=%d max=%d", e.TenantID, e.Used, e.Max)
}

// TokenBalanceExceededError 表示租户 Token 账户余额不足以支付本次调用的预估消耗
type TokenBalanceExceededError struct {
	TenantID string
	Balance  int64
	Required int64
}

func (e TokenBalanceExceededError) Error() string {
	return fmt.Sprintf("token balance exceeded: tenant=%s balance=%d required=%d", e.TenantID, e.Balance, e.Required)
}

// TokenQuotaChecker 用于检查租户 Token 日配额与账户余额
type TokenQuotaChecker struct {
	tenantRepo repository.TenantRepository
	jobRepo    repository.JobRepository
	llmRepo    repository.LLMUsageEventRepository
	now        func() time.Time
}

func NewTokenQuotaChecker(tenantRepo repository.TenantRepository, jobRepo repository.JobRepository, llmRepo repository.LLMUsageEventRepository) *TokenQuotaChecker {
	return &TokenQuotaChecker{
		tenantRepo: tenantRepo,
		jobRepo:    jobRepo,
		llmRepo:    llmRepo,
		now:        time.Now,
	}
}

// CheckBalance 校验租户账户余额是否足以支付 required 个预估 token；
// 余额不足时返回 TokenBalanceExceededError，调用方据此决定是否重试。
func (c *TokenQuotaChecker) CheckBalance(ctx context.Context, tenantID string, required int64) (int64, error) {
	tenant, err := c.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if tenant == nil {
		return 0, fmt.Errorf("tenant not found: %s", tenantID)
	}
	if !tenant.HasSufficientBalance(required) {
		return tenant.TokenBalance, TokenBalanceExceededError{
			TenantID: tenantID,
			Balance:  tenant.TokenBalance,
			Required: required,
		}
	}
	return tenant.TokenBalance, nil
}

// CheckDailyTokens 检查租户是否还有当日 Token 配额。
// 返回：used/max（便于客户端展示），以及是否超过配额的 error。
func (c *TokenQuotaChecker) CheckDailyTokens(ctx context.Context, tenantID string, quota *entity.TenantQuota) (used int64, max int64, err error) {
	if quota == nil || quota.MaxTokensPerDay <= 0 {
		return 0, 0, nil
	}

	now := c.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	jobUsed, err := c.jobRepo.GetTokenUsage(ctx, tenantID, start, end)
	if err != nil {
		return 0, quota.MaxTokensPerDay, err
	}
	used = jobUsed
	if c.llmRepo != nil {
		llmUsed, llmErr := c.llmRepo.GetTokenUsage(ctx, tenantID, start, end)
		if llmErr != nil {
			return 0, quota.MaxTokensPerDay, llmErr
		}
		used += llmUsed
	}
	if used >= quota.MaxTokensPerDay {
		return used, quota.MaxTokensPerDay, TokenQuotaExceededError{
			TenantID: tenantID,
			Max:      quota.MaxTokensPerDay,
			Used:     used,
		}
	}
	return used, quota.MaxTokensPerDay, nil
}
