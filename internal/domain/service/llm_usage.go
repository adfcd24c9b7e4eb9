package service

import "context"

// LLMUsageInput 表示一次模型调用的可观测数据。
type LLMUsageInput struct {
	Workflow string
	Provider string
	Model    string
	JobID    string

	PromptTokens     int
	CompletionTokens int
	DurationMs       int
}

// LLMUsageRecorder 记录模型用量。
// 约定：实现应为 best-effort，不阻塞生成流程。
type LLMUsageRecorder interface {
	Record(ctx context.Context, in LLMUsageInput) error
}
