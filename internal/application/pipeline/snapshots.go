package pipeline

import (
	"context"
	"errors"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/repository"
	apperrors "storyboard-ai-api/pkg/errors"
	"storyboard-ai-api/pkg/logger"
	"storyboard-ai-api/pkg/metrics"
)

const defaultSnapshotListLimit = 50

func (w *Workspace) snapshotRepo() (repository.SnapshotRepository, error) {
	if w.snapshots == nil {
		return nil, apperrors.ErrServiceUnavailable.WithDetail("snapshot store is not configured")
	}
	return w.snapshots, nil
}

func (w *Workspace) observeSnapshot(op string, err error) {
	driver := w.opts.SnapshotDriver
	if driver == "" {
		driver = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SnapshotOpsTotal.WithLabelValues(driver, op, status).Inc()
}

// SaveSnapshot 导出当前项目并保存为快照
func (w *Workspace) SaveSnapshot(ctx context.Context) (*entity.ProjectSnapshot, error) {
	repo, err := w.snapshotRepo()
	if err != nil {
		return nil, err
	}
	p := w.Project()
	doc, err := EncodeProject(p)
	if err != nil {
		return nil, err
	}
	snap := entity.NewProjectSnapshot(p.Title, doc)
	err = repo.Save(ctx, snap)
	w.observeSnapshot("save", err)
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}
	logger.Info(ctx, "snapshot saved", "snapshot_id", snap.ID)
	return snap, nil
}

// RestoreSnapshot 加载快照并按导入流程替换项目
func (w *Workspace) RestoreSnapshot(ctx context.Context, id string) (*entity.Project, error) {
	repo, err := w.snapshotRepo()
	if err != nil {
		return nil, err
	}
	snap, err := repo.Get(ctx, id)
	w.observeSnapshot("get", err)
	if err != nil {
		return nil, snapshotError(id, err)
	}
	p, err := w.Import(ctx, snap.Document)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "snapshot restored", "snapshot_id", id)
	return p, nil
}

// ListSnapshots 列出快照（不含文档）
func (w *Workspace) ListSnapshots(ctx context.Context, limit int) ([]*entity.ProjectSnapshot, error) {
	repo, err := w.snapshotRepo()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSnapshotListLimit
	}
	out, err := repo.List(ctx, limit)
	w.observeSnapshot("list", err)
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}
	return out, nil
}

// DeleteSnapshot 删除快照
func (w *Workspace) DeleteSnapshot(ctx context.Context, id string) error {
	repo, err := w.snapshotRepo()
	if err != nil {
		return err
	}
	err = repo.Delete(ctx, id)
	w.observeSnapshot("delete", err)
	if err != nil {
		return snapshotError(id, err)
	}
	logger.Info(ctx, "snapshot deleted", "snapshot_id", id)
	return nil
}

func snapshotError(id string, err error) error {
	if errors.Is(err, repository.ErrSnapshotNotFound) {
		return apperrors.ErrSnapshotNotFound.WithDetail(id)
	}
	return apperrors.ErrInternalError.WithError(err)
}
