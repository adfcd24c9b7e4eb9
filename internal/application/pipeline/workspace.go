package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/repository"
	"storyboard-ai-api/internal/domain/service"
	apperrors "storyboard-ai-api/pkg/errors"
	"storyboard-ai-api/pkg/logger"
)

// DefaultBatchDelay 批量生成时相邻两次调用的间隔
const DefaultBatchDelay = time.Second

// Options 流水线参数
type Options struct {
	BatchDelay          time.Duration
	MinStoryboardPanels int
	JobHistory          int
	// SnapshotDriver 仅用于指标标签
	SnapshotDriver string
}

// Workspace 持有唯一的项目聚合以及围绕它的阶段游标、任务记录与批量调度状态
type Workspace struct {
	registry  *Registry
	gen       service.GenerationService
	snapshots repository.SnapshotRepository
	stages    StageEvaluator
	jobs      *jobLog
	opts      Options

	mu        sync.Mutex
	stage     entity.Stage
	batch     *batchRun
	lastBatch *batchRun

	bulk singleflight.Group
	// wait 在两次批量调用之间等待；返回 false 表示等待被打断
	wait func(ctx context.Context, d time.Duration, stop <-chan struct{}) bool
}

// NewWorkspace 创建工作区；snapshots 可为 nil（禁用快照）
func NewWorkspace(gen service.GenerationService, snapshots repository.SnapshotRepository, opts Options) *Workspace {
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	return &Workspace{
		registry:  NewRegistry(nil),
		gen:       gen,
		snapshots: snapshots,
		stages:    NewStageEvaluator(opts.MinStoryboardPanels),
		jobs:      newJobLog(opts.JobHistory),
		opts:      opts,
		stage:     entity.StageProject,
		wait:      sleepOrStop,
	}
}

// Registry 返回底层注册表
func (w *Workspace) Registry() *Registry {
	return w.registry
}

// Project 返回项目快照；画格数与镜头数不一致时先重新对齐
func (w *Workspace) Project() *entity.Project {
	w.ensurePanels()
	return w.registry.Snapshot()
}

func (w *Workspace) ensurePanels() {
	snap := w.registry.Snapshot()
	if !panelsOutOfSync(snap) {
		return
	}
	_ = w.registry.Update(func(p *entity.Project) error {
		syncPanels(p)
		return nil
	})
}

// SettingsUpdate 项目参数的部分更新，nil 字段保持不变
type SettingsUpdate struct {
	Title         *string `json:"title"`
	Genre         *string `json:"genre"`
	MaxCharacters *int    `json:"maxCharacters"`
	MaxScenes     *int    `json:"maxScenes"`
	StoryConcept  *string `json:"storyConcept"`
	StyleGuide    *string `json:"styleGuide"`
	ArtStyle      *string `json:"artStyle"`
	AspectRatio   *string `json:"aspectRatio"`
}

// UpdateSettings 更新项目参数
func (w *Workspace) UpdateSettings(ctx context.Context, u SettingsUpdate) (*entity.Project, error) {
	if u.MaxCharacters != nil && *u.MaxCharacters < 1 {
		return nil, apperrors.ErrInvalidParam.WithDetail("maxCharacters must be positive")
	}
	if u.MaxScenes != nil && *u.MaxScenes < 1 {
		return nil, apperrors.ErrInvalidParam.WithDetail("maxScenes must be positive")
	}
	if u.AspectRatio != nil && !entity.IsSupportedAspectRatio(*u.AspectRatio) {
		return nil, apperrors.ErrInvalidParam.WithDetail("unsupported aspect ratio: " + *u.AspectRatio)
	}

	err := w.registry.Update(func(p *entity.Project) error {
		setIf(&p.Title, u.Title)
		setIf(&p.Genre, u.Genre)
		setIf(&p.StoryConcept, u.StoryConcept)
		setIf(&p.StyleGuide, u.StyleGuide)
		setIf(&p.ArtStyle, u.ArtStyle)
		setIf(&p.AspectRatio, u.AspectRatio)
		setIf(&p.MaxCharacters, u.MaxCharacters)
		setIf(&p.MaxScenes, u.MaxScenes)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "project settings updated")
	return w.registry.Snapshot(), nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// StageInfo 阶段状态
type StageInfo struct {
	Stage     entity.Stage `json:"stage"`
	Index     int          `json:"index"`
	Current   bool         `json:"current"`
	Complete  bool         `json:"complete"`
	Navigable bool         `json:"navigable"`
}

// CurrentStage 当前阶段
func (w *Workspace) CurrentStage() entity.Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

// Stages 返回所有阶段的完成与可达状态
func (w *Workspace) Stages() []StageInfo {
	current := w.CurrentStage()
	p := w.Project()
	out := make([]StageInfo, 0, len(entity.Stages()))
	for _, st := range entity.Stages() {
		out = append(out, StageInfo{
			Stage:     st,
			Index:     int(st),
			Current:   st == current,
			Complete:  w.stages.IsStageComplete(st, current, p),
			Navigable: w.stages.CanNavigate(current, st, p),
		})
	}
	return out
}

// Advance 前进到下一阶段
func (w *Workspace) Advance(ctx context.Context) (entity.Stage, error) {
	return w.GoTo(ctx, w.CurrentStage()+1)
}

// GoTo 跳转到指定阶段：后退总是允许，前进只能到下一阶段且当前阶段已完成
func (w *Workspace) GoTo(ctx context.Context, target entity.Stage) (entity.Stage, error) {
	if !target.Valid() {
		return w.CurrentStage(), apperrors.ErrInvalidParam.WithDetail("unknown stage")
	}
	p := w.Project()

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stages.CanNavigate(w.stage, target, p) {
		return w.stage, apperrors.ErrStageLocked.WithDetail(
			"cannot move from " + w.stage.String() + " to " + target.String())
	}
	from := w.stage
	w.stage = target
	logger.Info(ctx, "stage changed", "from", from.String(), "to", target.String())
	return target, nil
}

// Reset 恢复初始项目并回到第一阶段，同时停止批量生成
func (w *Workspace) Reset(ctx context.Context) *entity.Project {
	w.StopAll(ctx)
	w.registry.Replace(entity.NewProject())
	w.mu.Lock()
	w.stage = entity.StageProject
	w.mu.Unlock()
	logger.Info(ctx, "project reset")
	return w.registry.Snapshot()
}

// Jobs 返回任务记录（最新在前）
func (w *Workspace) Jobs() []entity.GenerationJob {
	return w.jobs.list()
}

// Job 查询单个任务
func (w *Workspace) Job(id string) (entity.GenerationJob, error) {
	j, ok := w.jobs.get(id)
	if !ok {
		return entity.GenerationJob{}, apperrors.ErrNotFound.WithDetail("job " + id)
	}
	return j.Snapshot(), nil
}

// sleepOrStop 等待 d；ctx 取消或 stop 关闭时提前返回 false
func sleepOrStop(ctx context.Context, d time.Duration, stop <-chan struct{}) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-stop:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	}
}
