package dto

import (
	"encoding/json"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/domain/entity"
)

// AddCharacterRequest 新增角色
type AddCharacterRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// AddLocationRequest 新增场景设定
type AddLocationRequest struct {
	Description string `json:"description" binding:"required"`
}

// ReferenceImageRequest 上传参考图（data URL）
type ReferenceImageRequest struct {
	DataURL string `json:"dataUrl" binding:"required"`
}

// PanelReferenceRequest 向画格添加参考
type PanelReferenceRequest struct {
	ID string `json:"id" binding:"required"`
}

// ReorderReferencesRequest 重排参考：给出完整顺序，或给出 from/to 移动单项
type ReorderReferencesRequest struct {
	IDs  []string `json:"ids"`
	From *int     `json:"from"`
	To   *int     `json:"to"`
}

// PanelRegenerateRequest 保存画格并带临时上传参考图重新生成
type PanelRegenerateRequest struct {
	// Edits merge patch，可省略
	Edits   json.RawMessage `json:"edits"`
	Uploads []string        `json:"uploads"`
}

// PanelResponse 画格保存结果；regenerate 时附带任务
type PanelResponse struct {
	Panel entity.StoryboardPanel `json:"panel"`
	Job   *entity.GenerationJob  `json:"job,omitempty"`
}

// PaletteResponse 可选参考图
type PaletteResponse struct {
	References []pipeline.Reference `json:"references"`
}
