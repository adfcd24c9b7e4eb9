// Package memory 提供进程内存储实现
package memory

import (
	"context"
	"sort"
	"sync"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/repository"
)

// SnapshotStore 进程内快照仓储，重启后丢失
type SnapshotStore struct {
	mu    sync.RWMutex
	items map[string]*entity.ProjectSnapshot
}

// NewSnapshotStore 创建内存快照仓储
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{items: make(map[string]*entity.ProjectSnapshot)}
}

var _ repository.SnapshotRepository = (*SnapshotStore)(nil)

// Save 保存快照（同 ID 覆盖）
func (s *SnapshotStore) Save(ctx context.Context, snap *entity.ProjectSnapshot) error {
	cp := *snap
	cp.Document = append([]byte(nil), snap.Document...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[snap.ID] = &cp
	return nil
}

// Get 获取快照
func (s *SnapshotStore) Get(ctx context.Context, id string) (*entity.ProjectSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.items[id]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	cp := *snap
	cp.Document = append([]byte(nil), snap.Document...)
	return &cp, nil
}

// List 按创建时间倒序列出
func (s *SnapshotStore) List(ctx context.Context, limit int) ([]*entity.ProjectSnapshot, error) {
	s.mu.RLock()
	out := make([]*entity.ProjectSnapshot, 0, len(s.items))
	for _, snap := range s.items {
		cp := *snap
		cp.Document = nil
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete 删除快照
func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return repository.ErrSnapshotNotFound
	}
	delete(s.items, id)
	return nil
}
