package handler

import (
	"bytes"

	"github.com/gin-gonic/gin"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/interfaces/http/dto"
)

// StoryboardHandler 分镜处理器
type StoryboardHandler struct {
	ws *pipeline.Workspace
}

// NewStoryboardHandler 创建分镜处理器
func NewStoryboardHandler(ws *pipeline.Workspace) *StoryboardHandler {
	return &StoryboardHandler{ws: ws}
}

// List 获取全部画格
func (h *StoryboardHandler) List(c *gin.Context) {
	dto.Success(c, h.ws.Storyboard())
}

// Palette 可添加到画格的参考图
func (h *StoryboardHandler) Palette(c *gin.Context) {
	dto.Success(c, dto.PaletteResponse{References: h.ws.Palette()})
}

// SavePanel 保存画格编辑
// @Summary 保存画格
// @Description 仅修改画格本身；regenerate=true 时保存后重新生成画格图
// @Tags Storyboard
// @Accept json
// @Produce json
// @Param index path int true "画格下标"
// @Param regenerate query bool false "保存后重新生成"
// @Success 200 {object} dto.Response[dto.PanelResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/storyboard/panels/{index} [patch]
func (h *StoryboardHandler) SavePanel(c *gin.Context) {
	index, ok := pathInt(c, "index")
	if !ok {
		return
	}
	patch, ok := readPatch(c)
	if !ok {
		return
	}
	panel, job, err := h.ws.SavePanel(c.Request.Context(), index, patch, queryBool(c, "regenerate"))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := dto.PanelResponse{Panel: panel}
	if job != nil {
		snap := job.Snapshot()
		resp.Job = &snap
	}
	dto.Success(c, resp)
}

// Regenerate 保存画格编辑并立即重新生成，uploads 只作用于本次生成
func (h *StoryboardHandler) Regenerate(c *gin.Context) {
	index, ok := pathInt(c, "index")
	if !ok {
		return
	}
	var req dto.PanelRegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	edits := bytes.TrimSpace(req.Edits)
	if len(edits) == 0 || string(edits) == "null" {
		edits = []byte("{}")
	}
	panel, job, err := h.ws.SavePanel(c.Request.Context(), index, pipeline.MergePatch(edits), true, req.Uploads...)
	if err != nil {
		respondError(c, err)
		return
	}
	snap := job.Snapshot()
	dto.Accepted(c, dto.PanelResponse{Panel: panel, Job: &snap})
}

// Generate 生成画格图
func (h *StoryboardHandler) Generate(c *gin.Context) {
	index, ok := pathInt(c, "index")
	if !ok {
		return
	}
	startOrWait(c, func() (*pipeline.Job, error) {
		return h.ws.StartPanelImage(c.Request.Context(), index)
	})
}

// References 获取画格参考解析结果
func (h *StoryboardHandler) References(c *gin.Context) {
	index, ok := pathInt(c, "index")
	if !ok {
		return
	}
	res, err := h.ws.PanelReferences(index)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, res)
}

// AddReference 向画格添加参考
func (h *StoryboardHandler) AddReference(c *gin.Context) {
	index, ok := pathInt(c, "index")
	if !ok {
		return
	}
	var req dto.PanelReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	res, err := h.ws.AddPanelReference(c.Request.Context(), index, req.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, res)
}

// RemoveReference 移除画格参考
func (h *StoryboardHandler) RemoveReference(c *gin.Context) {
	index, ok := pathInt(c, "index")
	if !ok {
		return
	}
	res, err := h.ws.RemovePanelReference(c.Request.Context(), index, c.Param("refId"))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, res)
}

// ReorderReferences 重排画格参考
func (h *StoryboardHandler) ReorderReferences(c *gin.Context) {
	index, ok := pathInt(c, "index")
	if !ok {
		return
	}
	var req dto.ReorderReferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	var (
		res pipeline.Resolution
		err error
	)
	switch {
	case req.From != nil && req.To != nil:
		res, err = h.ws.MovePanelReference(ctx, index, *req.From, *req.To)
	case req.IDs != nil:
		res, err = h.ws.ReorderPanelReferences(ctx, index, req.IDs)
	default:
		dto.BadRequest(c, "either ids or from/to is required")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, res)
}

// ResetReferences 恢复自动参考
func (h *StoryboardHandler) ResetReferences(c *gin.Context) {
	index, ok := pathInt(c, "index")
	if !ok {
		return
	}
	res, err := h.ws.ResetPanelReferences(c.Request.Context(), index)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, res)
}

// RunAll 批量生成全部画格
// @Summary 批量生成分镜
// @Description 按顺序生成，每次调用之间有间隔；同一时间只允许一个批量
// @Tags Storyboard
// @Produce json
// @Param wait query bool false "同步等待批量结束"
// @Success 202 {object} dto.Response[dto.RunAllResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/storyboard/run-all [post]
func (h *StoryboardHandler) RunAll(c *gin.Context) {
	runAll(c, h.ws, pipeline.BatchScopeStoryboard)
}

// StopAll 停止批量生成
func (h *StoryboardHandler) StopAll(c *gin.Context) {
	stopped := h.ws.StopAll(c.Request.Context())
	dto.Success(c, dto.StopAllResponse{Stopped: stopped, Batch: h.ws.BatchStatus()})
}

// BatchStatus 当前批量状态
func (h *StoryboardHandler) BatchStatus(c *gin.Context) {
	dto.Success(c, dto.RunAllResponse{Batch: h.ws.BatchStatus()})
}
