// Package main 初始化 PostgreSQL 快照表
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"storyboard-ai-api/internal/config"
	"storyboard-ai-api/internal/wire"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting snapshot schema bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dataLayer, cleanup, err := wire.InitializePostgresOnly(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	if err := dataLayer.PgClient.HealthCheck(ctx); err != nil {
		log.Fatalf("postgres is not reachable: %v", err)
	}
	if err := dataLayer.PgClient.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to create snapshot schema: %v", err)
	}

	fmt.Println("Snapshot schema is ready.")
}
