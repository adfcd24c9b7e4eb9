package config

import (
	"fmt"
	"strings"
)

// 快照存储驱动
const (
	SnapshotDriverMemory   = "memory"
	SnapshotDriverRedis    = "redis"
	SnapshotDriverPostgres = "postgres"
)

// Validate 校验配置
func (c *Config) Validate() error {
	switch strings.ToLower(c.Snapshot.Driver) {
	case SnapshotDriverMemory, SnapshotDriverRedis, SnapshotDriverPostgres:
	default:
		return fmt.Errorf("unsupported snapshot driver: %q", c.Snapshot.Driver)
	}
	if c.Pipeline.BatchDelay < 0 {
		return fmt.Errorf("pipeline.batch_delay must not be negative")
	}
	if c.Pipeline.MinStoryboardPanels < 1 {
		return fmt.Errorf("pipeline.min_storyboard_panels must be positive")
	}
	if c.LLM.DefaultProvider != "" && len(c.LLM.Providers) > 0 {
		if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
			return fmt.Errorf("llm.default_provider %q is not configured", c.LLM.DefaultProvider)
		}
	}
	return nil
}

// ProviderFor 返回流程使用的提供商名称
func (c LLMConfig) ProviderFor(workflow string) string {
	if p, ok := c.Workflows[workflow]; ok && strings.TrimSpace(p) != "" {
		return p
	}
	return c.DefaultProvider
}
