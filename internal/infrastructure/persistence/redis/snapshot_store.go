package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/repository"
	"storyboard-ai-api/pkg/logger"
)

// SnapshotStore 基于 Redis 的快照仓储：文档存 STRING，索引存 ZSET（score 为创建时间）
type SnapshotStore struct {
	client *Client
	prefix string
	ttl    time.Duration
	group  singleflight.Group
}

// NewSnapshotStore 创建 Redis 快照仓储
func NewSnapshotStore(client *Client, prefix string, ttl time.Duration) *SnapshotStore {
	if prefix == "" {
		prefix = "storyboard"
	}
	return &SnapshotStore{client: client, prefix: prefix, ttl: ttl}
}

var _ repository.SnapshotRepository = (*SnapshotStore)(nil)

func (s *SnapshotStore) indexKey() string {
	return SnapshotIndexKey(s.prefix)
}

func (s *SnapshotStore) itemKey(id string) string {
	return SnapshotKey(s.prefix, id)
}

// SnapshotIndexKey 快照索引键
func SnapshotIndexKey(prefix string) string {
	return fmt.Sprintf("%s:snapshots", prefix)
}

// SnapshotKey 快照文档键
func SnapshotKey(prefix, id string) string {
	return fmt.Sprintf("%s:snapshot:%s", prefix, id)
}

// Save 保存快照
func (s *SnapshotStore) Save(ctx context.Context, snap *entity.ProjectSnapshot) error {
	ctx, span := tracer.Start(ctx, "snapshot.Save",
		trace.WithAttributes(attribute.String("snapshot.id", snap.ID)))
	defer span.End()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.rdb.TxPipeline()
	pipe.Set(ctx, s.itemKey(snap.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(snap.CreatedAt.UnixMilli()),
		Member: snap.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Get 读取快照，并发读取同一 ID 时合并为一次请求
func (s *SnapshotStore) Get(ctx context.Context, id string) (*entity.ProjectSnapshot, error) {
	ctx, span := tracer.Start(ctx, "snapshot.Get",
		trace.WithAttributes(attribute.String("snapshot.id", id)))
	defer span.End()

	v, err, shared := s.group.Do(id, func() (interface{}, error) {
		return s.client.rdb.Get(ctx, s.itemKey(id)).Bytes()
	})
	span.SetAttributes(attribute.Bool("snapshot.shared", shared))
	if err != nil {
		if IsNil(err) {
			return nil, repository.ErrSnapshotNotFound
		}
		span.RecordError(err)
		return nil, err
	}

	var snap entity.ProjectSnapshot
	if err := json.Unmarshal(v.([]byte), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// List 按创建时间倒序列出，已过期的索引项会被顺带清理
func (s *SnapshotStore) List(ctx context.Context, limit int) ([]*entity.ProjectSnapshot, error) {
	ctx, span := tracer.Start(ctx, "snapshot.List")
	defer span.End()

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.rdb.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(ids) == 0 {
		return []*entity.ProjectSnapshot{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.itemKey(id)
	}
	values, err := s.client.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]*entity.ProjectSnapshot, 0, len(values))
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var snap entity.ProjectSnapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			logger.Warn(ctx, "skip undecodable snapshot", "snapshot_id", ids[i], "error", err.Error())
			continue
		}
		snap.Document = nil
		out = append(out, &snap)
	}
	if len(stale) > 0 {
		if err := s.client.rdb.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			logger.Warn(ctx, "failed to prune snapshot index", "error", err.Error())
		}
	}
	return out, nil
}

// Delete 删除快照
func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "snapshot.Delete",
		trace.WithAttributes(attribute.String("snapshot.id", id)))
	defer span.End()

	pipe := s.client.rdb.TxPipeline()
	delCmd := pipe.Del(ctx, s.itemKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	if delCmd.Val() == 0 {
		return repository.ErrSnapshotNotFound
	}
	return nil
}
