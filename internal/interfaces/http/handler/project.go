package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/interfaces/http/dto"
	apperrors "storyboard-ai-api/pkg/errors"
)

// ProjectHandler 项目处理器
type ProjectHandler struct {
	ws *pipeline.Workspace
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(ws *pipeline.Workspace) *ProjectHandler {
	return &ProjectHandler{ws: ws}
}

func (h *ProjectHandler) projectResponse(p *entity.Project) dto.ProjectResponse {
	return dto.ProjectResponse{Project: p, Stage: h.ws.CurrentStage()}
}

// GetProject 获取当前项目
// @Summary 获取当前项目
// @Tags Project
// @Produce json
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Router /v1/project [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	dto.Success(c, h.projectResponse(h.ws.Project()))
}

// UpdateSettings 更新项目参数
// @Summary 更新项目参数
// @Tags Project
// @Accept json
// @Produce json
// @Param body body dto.UpdateSettingsRequest true "待更新字段"
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/project/settings [patch]
func (h *ProjectHandler) UpdateSettings(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	p, err := h.ws.UpdateSettings(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, h.projectResponse(p))
}

// Reset 恢复初始项目
func (h *ProjectHandler) Reset(c *gin.Context) {
	p := h.ws.Reset(c.Request.Context())
	dto.Success(c, h.projectResponse(p))
}

// Export 导出项目文档
// @Summary 导出项目
// @Description 返回完整项目 JSON，不含生成中标记
// @Tags Project
// @Produce json
// @Success 200 {object} entity.Project
// @Router /v1/project/export [get]
func (h *ProjectHandler) Export(c *gin.Context) {
	doc, err := h.ws.Export(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="storyboard-project.json"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}

// Import 导入项目文档，整体替换
// @Summary 导入项目
// @Description 校验失败时项目保持不变
// @Tags Project
// @Accept json
// @Produce json
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/project/import [post]
func (h *ProjectHandler) Import(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, apperrors.ErrImportInvalid.WithDetail("failed to read request body"))
		return
	}
	p, err := h.ws.Import(ctx, doc)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, h.projectResponse(p))
}

// Stages 阶段状态
func (h *ProjectHandler) Stages(c *gin.Context) {
	dto.Success(c, dto.StageResponse{Stage: h.ws.CurrentStage(), Stages: h.ws.Stages()})
}

// Advance 前进到下一阶段
func (h *ProjectHandler) Advance(c *gin.Context) {
	st, err := h.ws.Advance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.StageResponse{Stage: st, Stages: h.ws.Stages()})
}

// GoTo 跳转阶段
func (h *ProjectHandler) GoTo(c *gin.Context) {
	var req dto.GoToStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	target, err := entity.ParseStage(req.Stage)
	if err != nil {
		respondError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}
	st, err := h.ws.GoTo(c.Request.Context(), target)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.StageResponse{Stage: st, Stages: h.ws.Stages()})
}
