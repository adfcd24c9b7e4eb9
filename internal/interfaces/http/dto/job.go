package dto

import (
	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/domain/entity"
)

// JobListResponse 任务列表
type JobListResponse struct {
	Jobs []entity.GenerationJob `json:"jobs"`
}

// RunAllResponse 批量生成状态
type RunAllResponse struct {
	Batch pipeline.BatchStatus `json:"batch"`
}

// StopAllResponse 停止批量生成
type StopAllResponse struct {
	Stopped bool                 `json:"stopped"`
	Batch   pipeline.BatchStatus `json:"batch"`
}
