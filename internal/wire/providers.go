package wire

import (
	"context"
	"fmt"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/application/usage"
	"storyboard-ai-api/internal/config"
	"storyboard-ai-api/internal/domain/repository"
	"storyboard-ai-api/internal/domain/service"
	"storyboard-ai-api/internal/infrastructure/generation"
	"storyboard-ai-api/internal/infrastructure/imagegen"
	"storyboard-ai-api/internal/infrastructure/llm"
	"storyboard-ai-api/internal/infrastructure/persistence/memory"
	"storyboard-ai-api/internal/infrastructure/persistence/postgres"
	"storyboard-ai-api/internal/infrastructure/persistence/redis"
	"storyboard-ai-api/internal/interfaces/http/handler"
	"storyboard-ai-api/internal/interfaces/http/middleware"
	"storyboard-ai-api/internal/interfaces/http/router"
	"storyboard-ai-api/pkg/logger"
)

// 快照存储驱动
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// App 应用依赖容器
type App struct {
	Router    *router.Router
	Workspace *pipeline.Workspace
	Usage     *usage.Recorder
}

// PostgresOnlyDataLayer 仅包含 PostgreSQL 的数据层（用于 bootstrap）
type PostgresOnlyDataLayer struct {
	PgClient *postgres.Client
}

// Storage 按配置启用的存储后端；未启用的为 nil
type Storage struct {
	Driver   string
	Redis    *redis.Client
	Postgres *postgres.Client
	Memory   *memory.SnapshotStore
}

// ProvideStorage 按 snapshot.driver 连接存储后端
func ProvideStorage(ctx context.Context, cfg *config.Config) (*Storage, func(), error) {
	driver := cfg.Snapshot.Driver
	if driver == "" {
		driver = DriverMemory
	}
	s := &Storage{Driver: driver}

	switch driver {
	case DriverMemory:
		s.Memory = memory.NewSnapshotStore()
		return s, func() {}, nil
	case DriverRedis:
		client, err := redis.NewClient(&cfg.Cache.Redis)
		if err != nil {
			return nil, nil, err
		}
		s.Redis = client
		logger.Info(ctx, "snapshot store ready", "driver", driver)
		return s, func() { _ = client.Close() }, nil
	case DriverPostgres:
		client, err := postgres.NewClient(&cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := client.EnsureSchema(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		s.Postgres = client
		logger.Info(ctx, "snapshot store ready", "driver", driver)
		return s, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown snapshot driver %q", driver)
	}
}

// ProvideSnapshotRepository 提供快照仓储
func ProvideSnapshotRepository(cfg *config.Config, s *Storage) repository.SnapshotRepository {
	switch {
	case s.Redis != nil:
		return redis.NewSnapshotStore(s.Redis, cfg.Snapshot.KeyPrefix, cfg.Snapshot.CacheTTL)
	case s.Postgres != nil:
		return postgres.NewSnapshotRepository(s.Postgres)
	default:
		return s.Memory
	}
}

// ProvideRateLimiter 仅 redis 驱动时提供限流器
func ProvideRateLimiter(s *Storage) middleware.RateLimiter {
	if s.Redis == nil {
		return nil
	}
	return redis.NewRateLimiter(s.Redis)
}

// ProvideRateLimitKeyFunc 提供限流 Key 构建函数
func ProvideRateLimitKeyFunc() middleware.KeyFunc {
	return redis.BuildRateLimitKey
}

// ProvideImageClient 提供图像生成客户端
func ProvideImageClient(ctx context.Context, cfg *config.Config) (*imagegen.Client, error) {
	return imagegen.NewClient(ctx, &cfg.Image)
}

// ProvideGenerationService 组合文本与图像模型
func ProvideGenerationService(models *llm.EinoFactory, images *imagegen.Client) service.GenerationService {
	return generation.NewService(models, images)
}

// ProvideWorkspace 创建项目工作区
func ProvideWorkspace(cfg *config.Config, gen service.GenerationService, snapshots repository.SnapshotRepository, s *Storage) *pipeline.Workspace {
	return pipeline.NewWorkspace(gen, snapshots, pipeline.Options{
		BatchDelay:          cfg.Pipeline.BatchDelay,
		MinStoryboardPanels: cfg.Pipeline.MinStoryboardPanels,
		JobHistory:          cfg.Pipeline.JobHistory,
		SnapshotDriver:      s.Driver,
	})
}

// ProvideHealthHandler 只检查已启用的外部依赖
func ProvideHealthHandler(cfg *config.Config, s *Storage) *handler.HealthHandler {
	checks := make(map[string]handler.HealthChecker)
	if s.Redis != nil {
		checks["redis"] = s.Redis
	}
	if s.Postgres != nil {
		checks["postgres"] = s.Postgres
	}
	return handler.NewHealthHandler(cfg.App.Version, checks)
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}
