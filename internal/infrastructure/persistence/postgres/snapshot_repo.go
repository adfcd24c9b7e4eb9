package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/repository"
)

// SnapshotRepository 快照仓储实现
type SnapshotRepository struct {
	client *Client
}

// NewSnapshotRepository 创建快照仓储
func NewSnapshotRepository(client *Client) *SnapshotRepository {
	return &SnapshotRepository{client: client}
}

var _ repository.SnapshotRepository = (*SnapshotRepository)(nil)

// Save 保存快照，同 ID 覆盖
func (r *SnapshotRepository) Save(ctx context.Context, snap *entity.ProjectSnapshot) error {
	ctx, span := tracer.Start(ctx, "postgres.SnapshotRepository.Save")
	defer span.End()

	query := `
		INSERT INTO project_snapshots (id, title, document, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, document = EXCLUDED.document
	`
	_, err := r.client.db.ExecContext(ctx, query, snap.ID, snap.Title, []byte(snap.Document), snap.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Get 根据 ID 获取快照
func (r *SnapshotRepository) Get(ctx context.Context, id string) (*entity.ProjectSnapshot, error) {
	ctx, span := tracer.Start(ctx, "postgres.SnapshotRepository.Get")
	defer span.End()

	query := `
		SELECT id, title, document, created_at
		FROM project_snapshots
		WHERE id = $1
	`

	var snap entity.ProjectSnapshot
	var document []byte
	err := r.client.db.QueryRowContext(ctx, query, id).Scan(&snap.ID, &snap.Title, &document, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSnapshotNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	snap.Document = document
	return &snap, nil
}

// List 按创建时间倒序列出
func (r *SnapshotRepository) List(ctx context.Context, limit int) ([]*entity.ProjectSnapshot, error) {
	ctx, span := tracer.Start(ctx, "postgres.SnapshotRepository.List")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, title, created_at
		FROM project_snapshots
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.client.db.QueryContext(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.ProjectSnapshot, 0)
	for rows.Next() {
		var snap entity.ProjectSnapshot
		if err := rows.Scan(&snap.ID, &snap.Title, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete 删除快照
func (r *SnapshotRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.SnapshotRepository.Delete")
	defer span.End()

	res, err := r.client.db.ExecContext(ctx, `DELETE FROM project_snapshots WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrSnapshotNotFound
	}
	return nil
}
