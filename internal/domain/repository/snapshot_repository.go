// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"errors"

	"storyboard-ai-api/internal/domain/entity"
)

// ErrSnapshotNotFound 快照不存在
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepository 项目快照仓储
type SnapshotRepository interface {
	Save(ctx context.Context, snap *entity.ProjectSnapshot) error
	// Get 与 Delete 在快照不存在时返回 ErrSnapshotNotFound
	Get(ctx context.Context, id string) (*entity.ProjectSnapshot, error)
	// List 按创建时间倒序返回，不含文档内容
	List(ctx context.Context, limit int) ([]*entity.ProjectSnapshot, error)
	Delete(ctx context.Context, id string) error
}
