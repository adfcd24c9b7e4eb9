package handler

import (
	"github.com/gin-gonic/gin"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/interfaces/http/dto"
)

// ScreenplayHandler 剧本处理器
type ScreenplayHandler struct {
	ws *pipeline.Workspace
}

// NewScreenplayHandler 创建剧本处理器
func NewScreenplayHandler(ws *pipeline.Workspace) *ScreenplayHandler {
	return &ScreenplayHandler{ws: ws}
}

// Generate 生成剧本
// @Summary 生成剧本
// @Description 剧本已存在且未指定 force 时直接返回现有剧本
// @Tags Screenplay
// @Produce json
// @Param force query bool false "强制重新生成"
// @Success 200 {object} dto.Response[[]entity.Scene]
// @Failure 409 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/screenplay/generate [post]
func (h *ScreenplayHandler) Generate(c *gin.Context) {
	scenes, err := h.ws.GenerateScreenplay(c.Request.Context(), queryBool(c, "force"))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, scenes)
}

// PatchScene 编辑单场
func (h *ScreenplayHandler) PatchScene(c *gin.Context) {
	sceneNumber, ok := pathInt(c, "sceneNumber")
	if !ok {
		return
	}
	patch, ok := readPatch(c)
	if !ok {
		return
	}
	scene, err := h.ws.PatchScene(c.Request.Context(), sceneNumber, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, scene)
}
