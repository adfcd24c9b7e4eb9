package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"storyboard-ai-api/internal/domain/entity"
	apperrors "storyboard-ai-api/pkg/errors"
	"storyboard-ai-api/pkg/logger"
	"storyboard-ai-api/pkg/metrics"
)

// BatchScope 批量生成范围
type BatchScope string

const (
	BatchScopeStoryboard BatchScope = "storyboard"
	BatchScopeCharacters BatchScope = "characters"
	BatchScopeLocations  BatchScope = "locations"
)

// ParseBatchScope 解析批量范围
func ParseBatchScope(s string) (BatchScope, error) {
	switch BatchScope(s) {
	case BatchScopeStoryboard, BatchScopeCharacters, BatchScopeLocations:
		return BatchScope(s), nil
	default:
		return "", apperrors.ErrInvalidParam.WithDetail("unknown batch scope: " + s)
	}
}

// BatchStatus 批量生成状态
type BatchStatus struct {
	ID         string     `json:"id,omitempty"`
	Scope      BatchScope `json:"scope,omitempty"`
	Running    bool       `json:"running"`
	Stopped    bool       `json:"stopped"`
	Issued     int        `json:"issued"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	Current    string     `json:"current,omitempty"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

var errBatchStopped = errors.New("batch stopped")

// batchRun 一次批量生成；stopped 为协作式取消令牌，只在迭代之间检查
type batchRun struct {
	scope    BatchScope
	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// status 由 Workspace.mu 保护
	status BatchStatus
}

func (r *batchRun) stop() {
	r.stopped.Store(true)
	r.stopOnce.Do(func() { close(r.stopCh) })
}

type itemState int

const (
	itemEnd itemState = iota
	itemSkip
	itemEligible
)

// RunAll 依次为尚无结果的构件生成，每次等待完成后再处理下一个，两次调用之间插入固定间隔。
// 停止只在迭代之间生效，已发起的生成会自行完成。重复调用会重新扫描，无需游标。
func (w *Workspace) RunAll(ctx context.Context, scope BatchScope) (BatchStatus, error) {
	run, err := w.beginBatch(ctx, scope)
	if err != nil {
		return BatchStatus{}, err
	}
	w.runBatch(ctx, run)
	return w.statusOf(run), nil
}

// StartRunAll 在后台运行批量生成并立即返回
func (w *Workspace) StartRunAll(ctx context.Context, scope BatchScope) (BatchStatus, error) {
	run, err := w.beginBatch(ctx, scope)
	if err != nil {
		return BatchStatus{}, err
	}
	go w.runBatch(context.WithoutCancel(ctx), run)
	return w.statusOf(run), nil
}

// StopAll 设置取消令牌并立即清除"运行中"状态；返回是否确有批量在运行
func (w *Workspace) StopAll(ctx context.Context) bool {
	w.mu.Lock()
	run := w.batch
	if run == nil {
		w.mu.Unlock()
		return false
	}
	run.stop()
	w.finishBatchLocked(run, true)
	w.mu.Unlock()

	logger.Info(ctx, "batch stop requested", "batch_id", run.status.ID, "scope", string(run.scope))
	return true
}

// BatchStatus 返回当前或最近一次批量生成的状态
func (w *Workspace) BatchStatus() BatchStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.batch != nil {
		return w.batch.status
	}
	if w.lastBatch != nil {
		return w.lastBatch.status
	}
	return BatchStatus{}
}

// WaitBatch 等待当前批量生成的循环退出
func (w *Workspace) WaitBatch(ctx context.Context) error {
	w.mu.Lock()
	run := w.batch
	if run == nil {
		run = w.lastBatch
	}
	w.mu.Unlock()
	if run == nil {
		return nil
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Workspace) beginBatch(ctx context.Context, scope BatchScope) (*batchRun, error) {
	if _, err := ParseBatchScope(string(scope)); err != nil {
		return nil, err
	}
	if scope == BatchScopeStoryboard {
		w.ensurePanels()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.batch != nil {
		return nil, apperrors.ErrBatchRunning.WithDetail(string(w.batch.scope))
	}
	now := time.Now()
	run := &batchRun{
		scope:  scope,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		status: BatchStatus{
			ID:        uuid.NewString(),
			Scope:     scope,
			Running:   true,
			StartedAt: &now,
		},
	}
	w.batch = run
	metrics.BatchRunning.Set(1)
	logger.Info(ctx, "batch started", "batch_id", run.status.ID, "scope", string(scope))
	return run, nil
}

func (w *Workspace) runBatch(ctx context.Context, run *batchRun) {
	defer close(run.done)
	ctx = logger.WithContext(ctx, logger.BatchIDKey, run.status.ID)

	issued := 0
	for i := 0; ; i++ {
		if run.stopped.Load() || ctx.Err() != nil {
			break
		}
		state, target := w.batchItem(run.scope, i)
		if state == itemEnd {
			break
		}
		if state == itemSkip {
			w.recordBatch(run, func(s *BatchStatus) { s.Skipped++ }, "skipped")
			continue
		}

		if issued > 0 {
			if !w.wait(ctx, w.opts.BatchDelay, run.stopCh) {
				break
			}
			// 等待期间状态可能已变化，重新判定
			state, target = w.batchItem(run.scope, i)
			if state == itemEnd {
				break
			}
			if state == itemSkip {
				w.recordBatch(run, func(s *BatchStatus) { s.Skipped++ }, "skipped")
				continue
			}
		}

		task, ok := w.batchTask(run.scope, i)
		if !ok || task.targetID != target {
			// 判定后目标被删除或位置变化
			logger.Warn(ctx, "batch item gone", "target", target)
			w.recordBatch(run, func(s *BatchStatus) { s.Skipped++ }, "skipped")
			continue
		}
		job, err := w.startTask(ctx, task, run.status.ID, func() error {
			if run.stopped.Load() {
				return errBatchStopped
			}
			return nil
		})
		if errors.Is(err, errBatchStopped) {
			break
		}
		if err != nil {
			// 目标在判定后被并发占用或删除
			logger.Warn(ctx, "batch item not started", "target", target, "error", err.Error())
			w.recordBatch(run, func(s *BatchStatus) { s.Skipped++ }, "skipped")
			continue
		}
		issued++
		w.recordBatch(run, func(s *BatchStatus) {
			s.Issued++
			s.Current = target
		}, "")

		select {
		case <-job.Done():
		case <-run.stopCh:
			// 已发起的生成继续在后台完成
		case <-ctx.Done():
		}
		if !isDone(job) {
			break
		}
		final := job.Snapshot()
		if final.Status == entity.JobStatusFailed {
			w.recordBatch(run, func(s *BatchStatus) { s.Failed++ }, "failed")
		} else {
			w.recordBatch(run, func(s *BatchStatus) { s.Succeeded++ }, "succeeded")
		}
	}

	w.mu.Lock()
	w.finishBatchLocked(run, run.stopped.Load())
	status := run.status
	w.mu.Unlock()

	logger.Info(ctx, "batch finished",
		"scope", string(run.scope),
		"issued", status.Issued,
		"succeeded", status.Succeeded,
		"failed", status.Failed,
		"skipped", status.Skipped,
		"stopped", status.Stopped,
	)
}

func isDone(job *Job) bool {
	select {
	case <-job.Done():
		return true
	default:
		return false
	}
}

// finishBatchLocked 调用方需持有 w.mu
func (w *Workspace) finishBatchLocked(run *batchRun, stopped bool) {
	if w.batch != run {
		return
	}
	now := time.Now()
	run.status.Running = false
	run.status.Stopped = stopped
	run.status.Current = ""
	run.status.FinishedAt = &now
	w.batch = nil
	w.lastBatch = run
	metrics.BatchRunning.Set(0)
}

func (w *Workspace) recordBatch(run *batchRun, fn func(s *BatchStatus), outcome string) {
	w.mu.Lock()
	fn(&run.status)
	w.mu.Unlock()
	if outcome != "" {
		metrics.BatchItemsTotal.WithLabelValues(string(run.scope), outcome).Inc()
	}
}

func (w *Workspace) statusOf(run *batchRun) BatchStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return run.status
}

// batchItem 基于最新快照判定第 i 个构件：越界结束；已有图或忙碌则跳过
func (w *Workspace) batchItem(scope BatchScope, i int) (itemState, string) {
	p := w.registry.Snapshot()
	switch scope {
	case BatchScopeCharacters:
		if i >= len(p.Characters) {
			return itemEnd, ""
		}
		c := &p.Characters[i]
		if c.HasImage() || c.IsGenerating {
			return itemSkip, c.ID
		}
		return itemEligible, c.ID
	case BatchScopeLocations:
		if i >= len(p.SceneSettings) {
			return itemEnd, ""
		}
		s := &p.SceneSettings[i]
		if s.HasImage() || s.IsGenerating {
			return itemSkip, s.ID
		}
		return itemEligible, s.ID
	default:
		if i >= len(p.Storyboard) {
			return itemEnd, ""
		}
		panel := &p.Storyboard[i]
		if panel.HasImage() || panel.IsGenerating {
			return itemSkip, panelTargetID(i)
		}
		return itemEligible, panelTargetID(i)
	}
}

// batchTask 组装第 i 个构件的生成任务；构件已被删除时返回 false
func (w *Workspace) batchTask(scope BatchScope, i int) (generationTask, bool) {
	p := w.registry.Snapshot()
	switch scope {
	case BatchScopeCharacters:
		if i >= len(p.Characters) {
			return generationTask{}, false
		}
		return w.characterTask(p.Characters[i].ID), true
	case BatchScopeLocations:
		if i >= len(p.SceneSettings) {
			return generationTask{}, false
		}
		return w.locationTask(p.SceneSettings[i].ID), true
	default:
		if i >= len(p.Storyboard) {
			return generationTask{}, false
		}
		return w.panelTask(i), true
	}
}
