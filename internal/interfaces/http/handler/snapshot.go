package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/interfaces/http/dto"
)

// SnapshotHandler 快照处理器
type SnapshotHandler struct {
	ws *pipeline.Workspace
}

// NewSnapshotHandler 创建快照处理器
func NewSnapshotHandler(ws *pipeline.Workspace) *SnapshotHandler {
	return &SnapshotHandler{ws: ws}
}

// ListSnapshots 列出快照
// @Summary 列出快照
// @Tags Snapshots
// @Produce json
// @Param limit query int false "条数" default(50)
// @Success 200 {object} dto.Response[[]dto.SnapshotResponse]
// @Router /v1/snapshots [get]
func (h *SnapshotHandler) ListSnapshots(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.ws.ListSnapshots(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToSnapshotListResponse(list))
}

// SaveSnapshot 保存当前项目为快照
func (h *SnapshotHandler) SaveSnapshot(c *gin.Context) {
	snap, err := h.ws.SaveSnapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Created(c, dto.ToSnapshotResponse(snap))
}

// RestoreSnapshot 从快照恢复项目
func (h *SnapshotHandler) RestoreSnapshot(c *gin.Context) {
	p, err := h.ws.RestoreSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ProjectResponse{Project: p, Stage: h.ws.CurrentStage()})
}

// DeleteSnapshot 删除快照
func (h *SnapshotHandler) DeleteSnapshot(c *gin.Context) {
	if err := h.ws.DeleteSnapshot(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	dto.NoContent(c)
}
