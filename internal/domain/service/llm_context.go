package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
	llmCtxKeyJobID    llmCtxKey = "llm_job_id"
)

// WithWorkflow 标记当前调用所属的生成流程（screenplay/shotlist/...）
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return withValue(ctx, llmCtxKeyWorkflow, workflow)
}

// WithProvider 标记当前调用使用的模型提供商
func WithProvider(ctx context.Context, provider string) context.Context {
	return withValue(ctx, llmCtxKeyProvider, provider)
}

// WithJobID 关联生成任务 ID
func WithJobID(ctx context.Context, jobID string) context.Context {
	return withValue(ctx, llmCtxKeyJobID, jobID)
}

func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	return WithProvider(WithWorkflow(ctx, workflow), provider)
}

func WorkflowFromContext(ctx context.Context) string {
	return valueOr(ctx, llmCtxKeyWorkflow, "unknown")
}

func ProviderFromContext(ctx context.Context) string {
	return valueOr(ctx, llmCtxKeyProvider, "unknown")
}

func JobIDFromContext(ctx context.Context) string {
	return valueOr(ctx, llmCtxKeyJobID, "")
}

func withValue(ctx context.Context, key llmCtxKey, v string) context.Context {
	if ctx == nil {
		return nil
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueOr(ctx context.Context, key llmCtxKey, def string) string {
	if ctx == nil {
		return def
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}
