package handler

import (
	"github.com/gin-gonic/gin"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/interfaces/http/dto"
)

// JobHandler 生成任务处理器
type JobHandler struct {
	ws *pipeline.Workspace
}

// NewJobHandler 创建任务处理器
func NewJobHandler(ws *pipeline.Workspace) *JobHandler {
	return &JobHandler{ws: ws}
}

// ListJobs 列出最近的生成任务
// @Summary 任务列表
// @Tags Jobs
// @Produce json
// @Success 200 {object} dto.Response[dto.JobListResponse]
// @Router /v1/jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	dto.Success(c, dto.JobListResponse{Jobs: h.ws.Jobs()})
}

// GetJob 获取任务详情
// @Summary 任务详情
// @Tags Jobs
// @Produce json
// @Param id path string true "任务 ID"
// @Success 200 {object} dto.Response[entity.GenerationJob]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.ws.Job(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, job)
}
