package handler

import (
	"github.com/gin-gonic/gin"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/interfaces/http/dto"
)

// CharacterHandler 角色处理器
type CharacterHandler struct {
	ws *pipeline.Workspace
}

// NewCharacterHandler 创建角色处理器
func NewCharacterHandler(ws *pipeline.Workspace) *CharacterHandler {
	return &CharacterHandler{ws: ws}
}

// Extract 从剧本提取角色
// @Summary 提取角色
// @Tags Characters
// @Produce json
// @Param force query bool false "强制重新提取"
// @Success 200 {object} dto.Response[[]entity.Character]
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/characters/extract [post]
func (h *CharacterHandler) Extract(c *gin.Context) {
	list, err := h.ws.ExtractCharacters(c.Request.Context(), queryBool(c, "force"))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, list)
}

// Add 手动新增角色
func (h *CharacterHandler) Add(c *gin.Context) {
	var req dto.AddCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	ch, err := h.ws.AddCharacter(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Created(c, ch)
}

// Patch 编辑角色
func (h *CharacterHandler) Patch(c *gin.Context) {
	patch, ok := readPatch(c)
	if !ok {
		return
	}
	ch, err := h.ws.PatchCharacter(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, ch)
}

// Delete 删除角色
func (h *CharacterHandler) Delete(c *gin.Context) {
	if err := h.ws.DeleteCharacter(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	dto.NoContent(c)
}

// Generate 生成角色设定图
// @Summary 生成角色设定图
// @Description 默认异步返回 202 与任务；wait=true 时等待任务结束
// @Tags Characters
// @Produce json
// @Param id path string true "角色 ID"
// @Param wait query bool false "等待任务结束"
// @Success 202 {object} dto.Response[entity.GenerationJob]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/characters/{id}/generate [post]
func (h *CharacterHandler) Generate(c *gin.Context) {
	startOrWait(c, func() (*pipeline.Job, error) {
		return h.ws.StartCharacterImage(c.Request.Context(), c.Param("id"))
	})
}

// SetReference 上传用户参考图
func (h *CharacterHandler) SetReference(c *gin.Context) {
	var req dto.ReferenceImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	ch, err := h.ws.SetCharacterReference(c.Request.Context(), c.Param("id"), req.DataURL)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, ch)
}

// ClearReference 清除用户参考图
func (h *CharacterHandler) ClearReference(c *gin.Context) {
	ch, err := h.ws.SetCharacterReference(c.Request.Context(), c.Param("id"), "")
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, ch)
}

// RunAll 批量生成全部角色设定图
func (h *CharacterHandler) RunAll(c *gin.Context) {
	runAll(c, h.ws, pipeline.BatchScopeCharacters)
}
