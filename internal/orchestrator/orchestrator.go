// Package orchestrator 实现 C8 编排引擎：Chapter-Generate、Outline-Continue、
// 向导三段（World/Characters/Outline）与 Chapter-Analyze 四个编排器，驱动 C1-C7。
package orchestrator

import (
	stdcontext "context"
	"fmt"
	"time"

	"z-novel-ai-api/internal/analysis"
	"z-novel-ai-api/internal/config"
	"z-novel-ai-api/internal/domain/repository"
	"z-novel-ai-api/internal/infrastructure/messaging"
	"z-novel-ai-api/internal/memory"
	"z-novel-ai-api/internal/tenant"
	"z-novel-ai-api/internal/toolregistry"
	workflowchain "z-novel-ai-api/internal/workflow/chain"
	workflowport "z-novel-ai-api/internal/workflow/port"
)

// Orchestrator 组合 C1-C7 的全部依赖，四个编排器共享同一个实例。
type Orchestrator struct {
	cfg *config.Config

	tenants *tenant.Registry
	txMgr   repository.Transactor
	tenCtx  repository.TenantContextManager

	projectRepo      repository.ProjectRepository
	outlineRepo      repository.OutlineRepository
	chapterRepo      repository.ChapterRepository
	entityRepo       repository.EntityRepository
	relationRepo     repository.RelationRepository
	membershipRepo   repository.OrganizationMembershipRepository
	writingStyleRepo repository.WritingStyleRepository
	defaultStyleRepo repository.ProjectDefaultStyleRepository
	analysisRepo     repository.ChapterAnalysisRepository
	taskRepo         repository.AnalysisTaskRepository
	fragmentRepo     repository.MemoryFragmentRepository
	jobRepo          repository.JobRepository

	memorySvc *memory.Service
	tools     *toolregistry.Registry
	generic   *workflowchain.GenericChain
	chapters  *workflowchain.ChapterChain
	ingestor  *analysis.Ingestor
	producer  *messaging.Producer
}

// Deps 聚合创建 Orchestrator 所需的全部依赖，避免构造函数参数列表失控。
type Deps struct {
	Cfg *config.Config

	Tenants *tenant.Registry
	TxMgr   repository.Transactor
	TenCtx  repository.TenantContextManager

	ProjectRepo      repository.ProjectRepository
	OutlineRepo      repository.OutlineRepository
	ChapterRepo      repository.ChapterRepository
	EntityRepo       repository.EntityRepository
	RelationRepo     repository.RelationRepository
	MembershipRepo   repository.OrganizationMembershipRepository
	WritingStyleRepo repository.WritingStyleRepository
	DefaultStyleRepo repository.ProjectDefaultStyleRepository
	AnalysisRepo     repository.ChapterAnalysisRepository
	TaskRepo         repository.AnalysisTaskRepository
	FragmentRepo     repository.MemoryFragmentRepository
	JobRepo          repository.JobRepository

	MemorySvc *memory.Service
	Tools     *toolregistry.Registry
	Factory   workflowport.ChatModelFactory
	Producer  *messaging.Producer
}

// New 创建编排器，内部派生 C7 的两条链（GenericChain 用于非章节提示词，
// ChapterChain 用于章节生成）与 C9 摄取器。
func New(d Deps) *Orchestrator {
	return &Orchestrator{
		cfg:              d.Cfg,
		tenants:          d.Tenants,
		txMgr:            d.TxMgr,
		tenCtx:           d.TenCtx,
		projectRepo:      d.ProjectRepo,
		outlineRepo:      d.OutlineRepo,
		chapterRepo:      d.ChapterRepo,
		entityRepo:       d.EntityRepo,
		relationRepo:     d.RelationRepo,
		membershipRepo:   d.MembershipRepo,
		writingStyleRepo: d.WritingStyleRepo,
		defaultStyleRepo: d.DefaultStyleRepo,
		analysisRepo:     d.AnalysisRepo,
		taskRepo:         d.TaskRepo,
		fragmentRepo:     d.FragmentRepo,
		jobRepo:          d.JobRepo,
		memorySvc:        d.MemorySvc,
		tools:            d.Tools,
		generic:          workflowchain.NewGenericChain(d.Factory),
		chapters:         workflowchain.NewChapterChain(d.Factory),
		ingestor:         analysis.NewIngestor(d.AnalysisRepo, d.FragmentRepo),
		producer:         d.Producer,
	}
}

// withTenantTx 在租户事务中执行 fn，与 handler 层的同名助手保持一致的语义。
func (o *Orchestrator) withTenantTx(ctx stdcontext.Context, tenantID string, fn func(stdcontext.Context) error) error {
	if o.txMgr == nil || o.tenCtx == nil {
		return fmt.Errorf("orchestrator transaction dependencies not configured")
	}
	return o.txMgr.WithTransaction(ctx, func(txCtx stdcontext.Context) error {
		if err := o.tenCtx.SetTenant(txCtx, tenantID); err != nil {
			return err
		}
		return fn(txCtx)
	})
}

// batchSizeFor 返回某编排任务的批大小，回退到 spec 默认值。
func (o *Orchestrator) batchSizeFor(kind string) int {
	if o.cfg == nil {
		return defaultBatchSize(kind)
	}
	switch kind {
	case "characters":
		if o.cfg.Orchestration.BatchSize.Characters > 0 {
			return o.cfg.Orchestration.BatchSize.Characters
		}
	case "outlines":
		if o.cfg.Orchestration.BatchSize.Outlines > 0 {
			return o.cfg.Orchestration.BatchSize.Outlines
		}
	case "chapters":
		if o.cfg.Orchestration.BatchSize.Chapters > 0 {
			return o.cfg.Orchestration.BatchSize.Chapters
		}
	}
	return defaultBatchSize(kind)
}

func defaultBatchSize(kind string) int {
	switch kind {
	case "characters":
		return 3
	case "outlines":
		return 5
	default:
		return 1
	}
}

func (o *Orchestrator) maxRetries() int {
	if o.cfg != nil && o.cfg.Orchestration.MaxRetries > 0 {
		return o.cfg.Orchestration.MaxRetries
	}
	return 3
}

func (o *Orchestrator) analysisTimeouts() (running, pending time.Duration) {
	running, pending = time.Minute, 2*time.Minute
	if o.cfg == nil {
		return
	}
	if o.cfg.Orchestration.AnalysisRunningTimeout > 0 {
		running = o.cfg.Orchestration.AnalysisRunningTimeout
	}
	if o.cfg.Orchestration.AnalysisPendingTimeout > 0 {
		pending = o.cfg.Orchestration.AnalysisPendingTimeout
	}
	return
}
