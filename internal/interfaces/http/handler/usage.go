package handler

import (
	"github.com/gin-gonic/gin"

	"storyboard-ai-api/internal/application/usage"
	"storyboard-ai-api/internal/interfaces/http/dto"
)

// UsageHandler LLM 用量处理器
type UsageHandler struct {
	recorder *usage.Recorder
}

// NewUsageHandler 创建用量处理器
func NewUsageHandler(recorder *usage.Recorder) *UsageHandler {
	return &UsageHandler{recorder: recorder}
}

// Summary 进程启动以来的 token 用量
func (h *UsageHandler) Summary(c *gin.Context) {
	dto.Success(c, h.recorder.Summary())
}
