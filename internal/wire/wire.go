//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"storyboard-ai-api/internal/application/usage"
	"storyboard-ai-api/internal/config"
	"storyboard-ai-api/internal/infrastructure/llm"
	"storyboard-ai-api/internal/interfaces/http/handler"
	"storyboard-ai-api/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		StorageSet,
		GenerationSet,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializePostgresOnly 仅初始化 PostgreSQL（用于 bootstrap）
func InitializePostgresOnly(ctx context.Context, cfg *config.Config) (*PostgresOnlyDataLayer, func(), error) {
	wire.Build(
		ProvidePostgresClient,
		wire.Struct(new(PostgresOnlyDataLayer), "*"),
	)
	return nil, nil, nil
}

// StorageSet 快照存储提供者集合
var StorageSet = wire.NewSet(
	ProvideStorage,
	ProvideSnapshotRepository,
	ProvideRateLimiter,
	ProvideRateLimitKeyFunc,
)

// GenerationSet 生成服务提供者集合
var GenerationSet = wire.NewSet(
	llm.NewEinoFactory,
	ProvideImageClient,
	ProvideGenerationService,
	usage.NewRecorder,
	ProvideWorkspace,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewProjectHandler,
	handler.NewSnapshotHandler,
	handler.NewScreenplayHandler,
	handler.NewCharacterHandler,
	handler.NewLocationHandler,
	handler.NewShotlistHandler,
	handler.NewStoryboardHandler,
	handler.NewJobHandler,
	handler.NewUsageHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
