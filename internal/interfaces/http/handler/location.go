package handler

import (
	"github.com/gin-gonic/gin"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/interfaces/http/dto"
)

// LocationHandler 场景设定处理器
type LocationHandler struct {
	ws *pipeline.Workspace
}

// NewLocationHandler 创建场景设定处理器
func NewLocationHandler(ws *pipeline.Workspace) *LocationHandler {
	return &LocationHandler{ws: ws}
}

// Extract 从剧本提取场景设定
func (h *LocationHandler) Extract(c *gin.Context) {
	list, err := h.ws.ExtractLocations(c.Request.Context(), queryBool(c, "force"))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, list)
}

func (h *LocationHandler) Add(c *gin.Context) {
	var req dto.AddLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	loc, err := h.ws.AddLocation(c.Request.Context(), req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Created(c, loc)
}

func (h *LocationHandler) Patch(c *gin.Context) {
	patch, ok := readPatch(c)
	if !ok {
		return
	}
	loc, err := h.ws.PatchLocation(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, loc)
}

func (h *LocationHandler) Delete(c *gin.Context) {
	if err := h.ws.DeleteLocation(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	dto.NoContent(c)
}

// Generate 生成场景设定图
func (h *LocationHandler) Generate(c *gin.Context) {
	startOrWait(c, func() (*pipeline.Job, error) {
		return h.ws.StartLocationImage(c.Request.Context(), c.Param("id"))
	})
}

func (h *LocationHandler) SetReference(c *gin.Context) {
	var req dto.ReferenceImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	loc, err := h.ws.SetLocationReference(c.Request.Context(), c.Param("id"), req.DataURL)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, loc)
}

func (h *LocationHandler) ClearReference(c *gin.Context) {
	loc, err := h.ws.SetLocationReference(c.Request.Context(), c.Param("id"), "")
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, loc)
}

// RunAll 批量生成全部场景设定图
func (h *LocationHandler) RunAll(c *gin.Context) {
	runAll(c, h.ws, pipeline.BatchScopeLocations)
}
