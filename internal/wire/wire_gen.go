// Package wire 提供依赖注入配置。
//
// wire.go 是 google/wire 的注入声明（仅在 wireinject 构建标签下编译，供
// `wire` 命令生成代码）；本文件是它的手写对应物，在常规构建下提供同样的
// 构造函数，供 cmd/bootstrap 等不经过完整 HTTP 路由装配的二进制使用。
package wire

import (
	"context"

	appretrieval "z-novel-ai-api/internal/application/retrieval"
	"z-novel-ai-api/internal/config"
	"z-novel-ai-api/internal/infrastructure/embedding"
	"z-novel-ai-api/internal/infrastructure/llm"
	"z-novel-ai-api/internal/infrastructure/messaging"
	"z-novel-ai-api/internal/infrastructure/persistence/milvus"
	"z-novel-ai-api/internal/infrastructure/persistence/postgres"
	"z-novel-ai-api/internal/infrastructure/persistence/redis"
	"z-novel-ai-api/internal/interfaces/http/handler"
	"z-novel-ai-api/internal/interfaces/http/middleware"
	"z-novel-ai-api/internal/interfaces/http/router"
	"z-novel-ai-api/internal/memory"
	"z-novel-ai-api/internal/orchestrator"
	"z-novel-ai-api/internal/tenant"
	"z-novel-ai-api/internal/toolregistry"
	"z-novel-ai-api/pkg/logger"
)

// PostgresOnlyDataLayer 仅包含 PostgreSQL 的数据层（用于 cmd/bootstrap）。
type PostgresOnlyDataLayer struct {
	PgClient      *postgres.Client
	TxManager     *postgres.TxManager
	GormTxManager *postgres.GormTxManager
	TenantContext *postgres.TenantContext

	TenantRepo       *postgres.TenantRepository
	UserRepo         *postgres.UserRepository
	ProjectRepo      *postgres.ProjectRepository
	ChapterRepo      *postgres.ChapterRepository
	EntityRepo       *postgres.EntityRepository
	RelationRepo     *postgres.RelationRepository
	EventRepo        *postgres.EventRepository
	JobRepo          *postgres.JobRepository
	LLMUsageRepo     *postgres.LLMUsageEventRepository
	WritingStyleRepo *postgres.WritingStyleRepository

	// TenantRegistry 是编排引擎新增的租户存储注册表 (C1)，随数据层一并装配，
	// 供 cmd/bootstrap 执行全局预置数据播种。
	TenantRegistry *tenant.Registry
}

// InitializePostgresOnly 仅初始化 PostgreSQL 数据层（用于 bootstrap）。
func InitializePostgresOnly(_ context.Context, cfg *config.Config) (*PostgresOnlyDataLayer, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { client.Close() }

	tenantRepo := postgres.NewTenantRepository(client)
	writingStyleRepo := postgres.NewWritingStyleRepository(client)

	layer := &PostgresOnlyDataLayer{
		PgClient:      client,
		TxManager:     postgres.NewTxManager(client),
		GormTxManager: postgres.NewGormTxManager(client),
		TenantContext: postgres.NewTenantContext(client),

		TenantRepo:       tenantRepo,
		UserRepo:         postgres.NewUserRepository(client),
		ProjectRepo:      postgres.NewProjectRepository(client),
		ChapterRepo:      postgres.NewChapterRepository(client),
		EntityRepo:       postgres.NewEntityRepository(client),
		RelationRepo:     postgres.NewRelationRepository(client),
		EventRepo:        postgres.NewEventRepository(client),
		JobRepo:          postgres.NewJobRepository(client),
		LLMUsageRepo:     postgres.NewLLMUsageEventRepository(client),
		WritingStyleRepo: writingStyleRepo,
	}
	layer.TenantRegistry = tenant.NewRegistry(client, tenantRepo, writingStyleRepo)

	return layer, cleanup, nil
}

// InitializeApp 初始化整个应用（带路由器），供 cmd/api-gateway 使用。
//
// 对应 wire.go 中 `InitializeApp` 的注入声明；由于该文件带 wireinject 构建
// 标签、且仓库未附带 wire 命令的生成产物，这里手写等价的构造过程。向量检索
// 相关依赖（Milvus + Embedding）不可用时自动降级，与 cmd/job-worker 一致。
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { pgClient.Close() })

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { redisClient.Close() })

	rateLimiter := redis.NewRateLimiter(redisClient)

	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	producer := messaging.NewProducer(redisClient.Redis(), int64(maxLen))

	// 向量检索依赖：不可用时降级（仅影响 Retrieval 语义检索与记忆服务的语义召回）
	var vectorRepo *milvus.Repository
	var retrievalEngine *appretrieval.Engine
	var milvusClient *milvus.Client
	if client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus); err != nil {
		logger.Warn(ctx, "milvus not available, vector indexing disabled", "error", err.Error())
	} else {
		milvusClient = client
		cleanups = append(cleanups, func() { milvusClient.Close() })
		vectorRepo = milvus.NewRepository(milvusClient)
	}
	if embedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding); err != nil {
		logger.Warn(ctx, "embedding not available, vector indexing disabled", "error", err.Error())
	} else if vectorRepo != nil {
		retrievalEngine = appretrieval.NewEngine(embedder, vectorRepo, nil, cfg.Embedding.BatchSize)
	}

	txMgr := postgres.NewTxManager(pgClient)
	tenantCtx := postgres.NewTenantContext(pgClient)

	tenantRepo := postgres.NewTenantRepository(pgClient)
	userRepo := postgres.NewUserRepository(pgClient)
	projectRepo := postgres.NewProjectRepository(pgClient)
	chapterRepo := postgres.NewChapterRepository(pgClient)
	entityRepo := postgres.NewEntityRepository(pgClient)
	relationRepo := postgres.NewRelationRepository(pgClient)
	eventRepo := postgres.NewEventRepository(pgClient)
	jobRepo := postgres.NewJobRepository(pgClient)

	outlineRepo := postgres.NewOutlineRepository(pgClient)
	fragmentRepo := postgres.NewMemoryFragmentRepository(pgClient)
	analysisRepo := postgres.NewChapterAnalysisRepository(pgClient)
	taskRepo := postgres.NewAnalysisTaskRepository(pgClient)
	membershipRepo := postgres.NewOrganizationMembershipRepository(pgClient)
	toolPluginRepo := postgres.NewToolPluginRepository(pgClient)
	writingStyleRepo := postgres.NewWritingStyleRepository(pgClient)
	defaultStyleRepo := postgres.NewProjectDefaultStyleRepository(pgClient)

	llmFactory := llm.NewEinoFactory(cfg)

	tenantRegistry := tenant.NewRegistry(pgClient, tenantRepo, writingStyleRepo)
	memorySvc := memory.NewService(chapterRepo, entityRepo, fragmentRepo, retrievalEngine)
	toolRegistry := toolregistry.NewRegistry(toolPluginRepo, cfg.Orchestration.ToolCallTimeout)

	orch := orchestrator.New(orchestrator.Deps{
		Cfg:              cfg,
		Tenants:          tenantRegistry,
		TxMgr:            txMgr,
		TenCtx:           tenantCtx,
		ProjectRepo:      projectRepo,
		OutlineRepo:      outlineRepo,
		ChapterRepo:      chapterRepo,
		EntityRepo:       entityRepo,
		RelationRepo:     relationRepo,
		MembershipRepo:   membershipRepo,
		WritingStyleRepo: writingStyleRepo,
		DefaultStyleRepo: defaultStyleRepo,
		AnalysisRepo:     analysisRepo,
		TaskRepo:         taskRepo,
		FragmentRepo:     fragmentRepo,
		JobRepo:          jobRepo,
		MemorySvc:        memorySvc,
		Tools:            toolRegistry,
		Factory:          llmFactory,
		Producer:         producer,
	})

	outlineHandler := handler.NewOutlineHandler(outlineRepo)
	orchHandler := handler.NewOrchestrationHandler(orch)

	authCfg := middleware.AuthConfig{
		Secret:    cfg.Security.JWT.Secret,
		Issuer:    cfg.Security.JWT.Issuer,
		SkipPaths: middleware.DefaultSkipPaths,
		Enabled:   true,
	}

	handlers := &router.RouterHandlers{
		Auth:         handler.NewAuthHandler(authCfg, userRepo, tenantRepo),
		Health:       handler.NewHealthHandler(pgClient, redisClient, milvusClient),
		Project:      handler.NewProjectHandler(projectRepo),
		Outline:      outlineHandler,
		Chapter:      handler.NewChapterHandler(chapterRepo, projectRepo, jobRepo, producer),
		Entity:       handler.NewEntityHandler(entityRepo, relationRepo),
		Orchestrator: orchHandler,
		Job:          handler.NewJobHandler(jobRepo),
		Retrieval:    handler.NewRetrievalHandler(retrievalEngine),
		User:         handler.NewUserHandler(userRepo),
		Tenant:       handler.NewTenantHandler(tenantRepo),
		Event:        handler.NewEventHandler(eventRepo),
		Relation:     handler.NewRelationHandler(relationRepo),
		RateLimiter:  rateLimiter,
		Transactor:   txMgr,
		TenantCtxMgr: tenantCtx,
	}

	return router.NewWithDeps(cfg, handlers), cleanup, nil
}
