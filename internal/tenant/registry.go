// Package tenant 实现租户存储句柄注册表 (C1)：为每个租户提供可复用的存储句柄与
// 写序列化锁，句柄在首次使用时创建并缓存。
package tenant

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"z-novel-ai-api/internal/domain/entity"
	"z-novel-ai-api/internal/domain/repository"
	"z-novel-ai-api/internal/infrastructure/persistence/postgres"
	apperrors "z-novel-ai-api/pkg/errors"
	"z-novel-ai-api/pkg/logger"
)

var tracer = otel.Tracer("tenant")

// defaultGlobalStylePresets 是全局写作风格预设的唯一种子列表：库中尚无全局预设时由
// ensureGlobalSeed 写入；cmd/bootstrap 也经 Registry.Acquire 走同一路径。
var defaultGlobalStylePresets = []struct {
	name       string
	desc       string
	promptHint string
}{
	{"默认", "朴素直白的叙事风格，不额外强调文风", "以清晰、克制的笔触叙述，避免堆砌辞藻。"},
	{"文艺", "注重意象与节奏的文学化风格", "多用比喻与留白，句式长短交错，强调氛围渲染。"},
	{"轻小说", "轻松明快，对话驱动", "对话占比高，叙述简短，语气活泼，适合快节奏剧情。"},
	{"悬疑", "节制的信息释放与紧张感", "强调伏笔与反转，叙述克制，避免提前暴露关键信息。"},
	{"武侠", "古典侠义叙事", "使用古风词汇与招式描写，强调江湖气与人物气节。"},
}

// Handle 是某个租户在存储层的可复用句柄：持有租户元数据、绑定该租户的
// TenantContext（用于设置 RLS 会话变量）以及该租户的写序列化锁。
type Handle struct {
	TenantID string
	Tenant   *entity.Tenant
	Ctx      *postgres.TenantContext

	sem *semaphore.Weighted
}

func newHandle(tenantID string, tnt *entity.Tenant, tc *postgres.TenantContext) *Handle {
	return &Handle{
		TenantID: tenantID,
		Tenant:   tnt,
		Ctx:      tc,
		sem:      semaphore.NewWeighted(1),
	}
}

// lockHolderKey 是写锁重入标记在 context 中的键，镜像
// repository.TxKey{} 的用法：同一逻辑任务沿 context 传递时，
// 再次对同一租户取锁应直接通过而不是阻塞自己。
type lockHolderKey struct{}

func heldTenants(ctx context.Context) map[string]struct{} {
	held, _ := ctx.Value(lockHolderKey{}).(map[string]struct{})
	return held
}

// WriteLock 获取该租户的写序列化锁；在同一逻辑任务（同一 context 链）内重入时
// 直接放行。调用方必须在操作完成后调用返回的 release。
func (h *Handle) WriteLock(ctx context.Context) (context.Context, func(), error) {
	if _, ok := heldTenants(ctx)[h.TenantID]; ok {
		return ctx, func() {}, nil
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return ctx, nil, apperrors.Wrap(err, apperrors.CodeStoreUnavailable, "acquire tenant write lock")
	}

	prev := heldTenants(ctx)
	next := make(map[string]struct{}, len(prev)+1)
	for k := range prev {
		next[k] = struct{}{}
	}
	next[h.TenantID] = struct{}{}

	lockedCtx := context.WithValue(ctx, lockHolderKey{}, next)

	var once sync.Once
	release := func() {
		once.Do(func() { h.sem.Release(1) })
	}
	return lockedCtx, release, nil
}

// Registry 是租户存储句柄的注册表：sync.Map 缓存 *Handle，
// per-tenant singleflight 保证同一租户至多一次初始化在途，
// 全局种子（写作风格预设）在每个租户句柄首次初始化时检查，仅在尚无全局预设时写入。
type Registry struct {
	client           *postgres.Client
	tenantRepo       repository.TenantRepository
	writingStyleRepo repository.WritingStyleRepository

	handles    sync.Map // tenantID -> *Handle
	initGroup  singleflight.Group
	seedGroup  singleflight.Group
	seededOnce sync.Once
	seedErr    error
}

// NewRegistry 创建租户存储句柄注册表。
func NewRegistry(client *postgres.Client, tenantRepo repository.TenantRepository, writingStyleRepo repository.WritingStyleRepository) *Registry {
	return &Registry{
		client:           client,
		tenantRepo:       tenantRepo,
		writingStyleRepo: writingStyleRepo,
	}
}

// Acquire 返回租户的可复用句柄；首次调用可能阻塞于 schema 确认与全局种子灌入。
// 种子失败不会被缓存为永久失败，下一次 Acquire 会重试。
func (r *Registry) Acquire(ctx context.Context, tenantID string) (*Handle, error) {
	ctx, span := tracer.Start(ctx, "tenant.Registry.Acquire")
	defer span.End()

	if cached, ok := r.handles.Load(tenantID); ok {
		return cached.(*Handle), nil
	}

	v, err, _ := r.initGroup.Do(tenantID, func() (interface{}, error) {
		if cached, ok := r.handles.Load(tenantID); ok {
			return cached.(*Handle), nil
		}

		if err := r.ensureGlobalSeed(ctx); err != nil {
			return nil, err
		}

		tnt, err := r.tenantRepo.GetByID(ctx, tenantID)
		if err != nil {
			span.RecordError(err)
			return nil, apperrors.Wrap(err, apperrors.CodeStoreUnavailable, "load tenant for handle acquire")
		}
		if tnt == nil {
			return nil, apperrors.ErrNotFound.WithDetail(fmt.Sprintf("tenant %s not found", tenantID))
		}

		handle := newHandle(tenantID, tnt, postgres.NewTenantContext(r.client))
		r.handles.Store(tenantID, handle)
		logger.Info(ctx, "tenant store handle initialized", "tenant_id", tenantID)
		return handle, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// ensureGlobalSeed 确保全局写作风格预设存在：每次新租户句柄初始化都会查询一次，
// 已有全局预设则不写入；并发调用经 seedGroup 合并。cmd/bootstrap 经 Acquire 走同一路径。
func (r *Registry) ensureGlobalSeed(ctx context.Context) error {
	_, err, _ := r.seedGroup.Do("global-seed", func() (interface{}, error) {
		existing, err := r.writingStyleRepo.ListGlobal(ctx)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStoreUnavailable, "check global writing style presets")
		}
		if len(existing) > 0 {
			return nil, nil
		}
		for _, preset := range defaultGlobalStylePresets {
			style := entity.NewGlobalWritingStyle(preset.name, preset.desc, preset.promptHint)
			if err := r.writingStyleRepo.Create(ctx, style); err != nil {
				return nil, apperrors.Wrap(err, apperrors.CodeStoreUnavailable, "seed global writing style preset")
			}
		}
		logger.Info(ctx, "global writing style presets seeded", "count", len(defaultGlobalStylePresets))
		return nil, nil
	})
	return err
}

// WriteLock 是 Acquire 后取该租户写锁的便捷封装。
func (r *Registry) WriteLock(ctx context.Context, tenantID string) (context.Context, func(), error) {
	handle, err := r.Acquire(ctx, tenantID)
	if err != nil {
		return ctx, nil, err
	}
	return handle.WriteLock(ctx)
}

// CloseAll 在关闭时释放所有缓存句柄；当前句柄不持有独立连接，
// 仅清空缓存以便下一次 Acquire 重新校验租户状态。
func (r *Registry) CloseAll(_ context.Context) error {
	r.handles.Range(func(key, _ interface{}) bool {
		r.handles.Delete(key)
		return true
	})
	return nil
}
