package model

import "time"

// GenerateOptions 单次调用的模型参数，零值表示使用提供商默认配置
type GenerateOptions struct {
	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

type LLMUsageMeta struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	GeneratedAt      time.Time
}

// JSONOutput 结构化生成结果
type JSONOutput struct {
	// JSON 从模型输出中截取的 JSON 文本
	JSON string
	// Raw 模型原始输出
	Raw string
	// Prompt 渲染后的用户提示词
	Prompt string
	Meta   LLMUsageMeta
}
