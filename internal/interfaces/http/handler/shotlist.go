package handler

import (
	"github.com/gin-gonic/gin"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/interfaces/http/dto"
)

// ShotlistHandler 镜头表处理器
type ShotlistHandler struct {
	ws *pipeline.Workspace
}

// NewShotlistHandler 创建镜头表处理器
func NewShotlistHandler(ws *pipeline.Workspace) *ShotlistHandler {
	return &ShotlistHandler{ws: ws}
}

// Generate 生成镜头表
// @Summary 生成镜头表
// @Description 生成后按镜头数同步分镜画格
// @Tags Shotlist
// @Produce json
// @Param force query bool false "强制重新生成"
// @Success 200 {object} dto.Response[[]entity.Shot]
// @Router /v1/shotlist/generate [post]
func (h *ShotlistHandler) Generate(c *gin.Context) {
	shots, err := h.ws.GenerateShotlist(c.Request.Context(), queryBool(c, "force"))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, shots)
}

// PatchShot 编辑单个镜头
func (h *ShotlistHandler) PatchShot(c *gin.Context) {
	scene, ok := pathInt(c, "scene")
	if !ok {
		return
	}
	shot, ok := pathInt(c, "shot")
	if !ok {
		return
	}
	patch, ok := readPatch(c)
	if !ok {
		return
	}
	out, err := h.ws.PatchShot(c.Request.Context(), entity.ShotKey{SceneNumber: scene, ShotNumber: shot}, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, out)
}
