package dto

import (
	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/domain/entity"
)

// ProjectResponse 项目与当前阶段
type ProjectResponse struct {
	Project *entity.Project `json:"project"`
	Stage   entity.Stage    `json:"stage"`
}

// UpdateSettingsRequest 项目参数更新
type UpdateSettingsRequest = pipeline.SettingsUpdate

// GoToStageRequest 跳转阶段，支持阶段名或序号
type GoToStageRequest struct {
	Stage string `json:"stage" binding:"required"`
}

// StageResponse 阶段切换结果
type StageResponse struct {
	Stage  entity.Stage          `json:"stage"`
	Stages []pipeline.StageInfo `json:"stages"`
}

// SnapshotResponse 快照元数据
type SnapshotResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// ToSnapshotResponse 转换快照
func ToSnapshotResponse(s *entity.ProjectSnapshot) *SnapshotResponse {
	return &SnapshotResponse{
		ID:        s.ID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ToSnapshotListResponse 转换快照列表
func ToSnapshotListResponse(list []*entity.ProjectSnapshot) []*SnapshotResponse {
	out := make([]*SnapshotResponse, 0, len(list))
	for _, s := range list {
		out = append(out, ToSnapshotResponse(s))
	}
	return out
}
