package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProjectSnapshot 项目快照（导出文档的持久化副本）
type ProjectSnapshot struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Document  json.RawMessage `json:"document"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewProjectSnapshot 创建快照
func NewProjectSnapshot(title string, document json.RawMessage) *ProjectSnapshot {
	return &ProjectSnapshot{
		ID:        uuid.NewString(),
		Title:     title,
		Document:  document,
		CreatedAt: time.Now().UTC(),
	}
}
