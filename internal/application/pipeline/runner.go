package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/service"
	apperrors "storyboard-ai-api/pkg/errors"
	"storyboard-ai-api/pkg/logger"
	"storyboard-ai-api/pkg/metrics"
	"storyboard-ai-api/pkg/tracer"
)

// CharacterAspectRatio 角色立绘固定使用竖版比例
const CharacterAspectRatio = "3:4"

var errEmptyImage = errors.New("generation service returned an empty image")

// applyFunc 基于最新快照写回结果；返回 false 表示目标已不存在或已被替换
type applyFunc func(p *entity.Project) bool

// callFunc 发起一次生成调用
type callFunc func(ctx context.Context) (applyFunc, error)

// generationTask 描述一次针对单个构件的生成
type generationTask struct {
	jobType  entity.JobType
	targetID string
	// begin 在注册表事务内校验目标、置忙并基于当前状态组装调用
	begin func(p *entity.Project) (callFunc, error)
	// release 失败时清除忙碌标记，保留原结果
	release func(p *entity.Project)
}

// StartCharacterImage 开始生成角色立绘，立即置忙并返回任务句柄
func (w *Workspace) StartCharacterImage(ctx context.Context, id string) (*Job, error) {
	return w.startTask(ctx, w.characterTask(id), "", nil)
}

// StartLocationImage 开始生成场景设定图
func (w *Workspace) StartLocationImage(ctx context.Context, id string) (*Job, error) {
	return w.startTask(ctx, w.locationTask(id), "", nil)
}

// StartPanelImage 开始生成分镜画格
func (w *Workspace) StartPanelImage(ctx context.Context, index int) (*Job, error) {
	return w.startTask(ctx, w.panelTask(index), "", nil)
}

// GenerateCharacterImage 生成角色立绘并等待结束
func (w *Workspace) GenerateCharacterImage(ctx context.Context, id string) (entity.GenerationJob, error) {
	return awaitJob(w.StartCharacterImage(ctx, id))(ctx)
}

// GenerateLocationImage 生成场景设定图并等待结束
func (w *Workspace) GenerateLocationImage(ctx context.Context, id string) (entity.GenerationJob, error) {
	return awaitJob(w.StartLocationImage(ctx, id))(ctx)
}

// GeneratePanelImage 生成分镜画格并等待结束
func (w *Workspace) GeneratePanelImage(ctx context.Context, index int) (entity.GenerationJob, error) {
	return awaitJob(w.StartPanelImage(ctx, index))(ctx)
}

func awaitJob(job *Job, err error) func(ctx context.Context) (entity.GenerationJob, error) {
	return func(ctx context.Context) (entity.GenerationJob, error) {
		if err != nil {
			return entity.GenerationJob{}, err
		}
		final, err := job.Wait(ctx)
		if err != nil {
			return final, err
		}
		if final.Status == entity.JobStatusFailed {
			return final, apperrors.ErrGenerationFailed.WithDetail(final.ErrorMessage)
		}
		return final, nil
	}
}

// startTask 在注册表事务内置忙，随后在独立 goroutine 中调用生成服务。
// guard 非空时在同一事务内执行，用于批量任务的停止检查。
func (w *Workspace) startTask(ctx context.Context, task generationTask, batchID string, guard func() error) (*Job, error) {
	var call callFunc
	err := w.registry.Update(func(p *entity.Project) error {
		if guard != nil {
			if err := guard(); err != nil {
				return err
			}
		}
		c, err := task.begin(p)
		if err != nil {
			return err
		}
		call = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	job := newJob(task.jobType, task.targetID, batchID)
	w.jobs.add(job)
	metrics.GenerationInFlight.WithLabelValues(string(task.jobType)).Inc()

	// 请求结束不应中断已发起的生成
	runCtx := context.WithoutCancel(ctx)
	runCtx = logger.WithContext(runCtx, logger.JobIDKey, job.ID())
	runCtx = service.WithJobID(runCtx, job.ID())
	if batchID != "" {
		runCtx = logger.WithContext(runCtx, logger.BatchIDKey, batchID)
	}
	go w.runTask(runCtx, task, job, call)
	return job, nil
}

func (w *Workspace) runTask(ctx context.Context, task generationTask, job *Job, call callFunc) {
	kind := string(task.jobType)
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline.generate", trace.WithAttributes(
		attribute.String("job.type", kind),
		attribute.String("job.target", task.targetID),
	))

	logger.Info(ctx, "generation started", "type", kind, "target", task.targetID)

	apply, err := safeCall(ctx, call)
	metrics.GenerationInFlight.WithLabelValues(kind).Dec()
	metrics.GenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err != nil {
		_ = w.registry.Update(func(p *entity.Project) error {
			task.release(p)
			return nil
		})
		job.finish(func(j *entity.GenerationJob) { j.Fail(err.Error()) })
		metrics.GenerationTotal.WithLabelValues(kind, string(entity.JobStatusFailed)).Inc()
		logger.Error(ctx, "generation failed", err, "type", kind, "target", task.targetID)
		tracer.End(span, err)
		return
	}

	applied := false
	_ = w.registry.Update(func(p *entity.Project) error {
		applied = apply(p)
		return nil
	})
	if !applied {
		job.finish(func(j *entity.GenerationJob) { j.Discard("target removed or replaced before result arrived") })
		metrics.GenerationTotal.WithLabelValues(kind, string(entity.JobStatusDiscarded)).Inc()
		logger.Warn(ctx, "generation result discarded", "type", kind, "target", task.targetID)
		tracer.End(span, nil)
		return
	}

	job.finish(func(j *entity.GenerationJob) { j.Complete() })
	metrics.GenerationTotal.WithLabelValues(kind, string(entity.JobStatusCompleted)).Inc()
	logger.Info(ctx, "generation completed", "type", kind, "target", task.targetID,
		"duration_ms", time.Since(start).Milliseconds())
	tracer.End(span, nil)
}

// safeCall 将生成服务中的 panic 转为普通失败
func safeCall(ctx context.Context, call callFunc) (apply applyFunc, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation panic: %v", r)
		}
	}()
	return call(ctx)
}

func (w *Workspace) characterTask(id string) generationTask {
	return generationTask{
		jobType:  entity.JobTypeCharacterImage,
		targetID: id,
		begin: func(p *entity.Project) (callFunc, error) {
			i := p.CharacterIndex(id)
			if i < 0 {
				return nil, apperrors.ErrArtifactNotFound.WithDetail("character " + id)
			}
			c := &p.Characters[i]
			if c.IsGenerating {
				return nil, apperrors.ErrGenerationBusy.WithDetail("character " + id)
			}
			ref, err := service.InlineImageFromDataURL(c.ReferenceImage)
			if err != nil {
				return nil, apperrors.ErrInvalidParam.WithDetail("character reference image: " + err.Error())
			}
			in := service.CharacterImageInput{
				Character:   *c,
				ArtStyle:    p.ArtStyle,
				AspectRatio: CharacterAspectRatio,
				Reference:   ref,
			}
			c.IsGenerating = true

			return func(ctx context.Context) (applyFunc, error) {
				img, err := w.gen.GenerateCharacterImage(ctx, in)
				if err != nil {
					return nil, err
				}
				if img == nil || img.Data == "" {
					return nil, errEmptyImage
				}
				url := img.DataURL()
				return func(p *entity.Project) bool {
					i := p.CharacterIndex(id)
					if i < 0 {
						return false
					}
					p.Characters[i].ImageURL = url
					p.Characters[i].IsGenerating = false
					return true
				}, nil
			}, nil
		},
		release: func(p *entity.Project) {
			if i := p.CharacterIndex(id); i >= 0 {
				p.Characters[i].IsGenerating = false
			}
		},
	}
}

func (w *Workspace) locationTask(id string) generationTask {
	return generationTask{
		jobType:  entity.JobTypeLocationImage,
		targetID: id,
		begin: func(p *entity.Project) (callFunc, error) {
			i := p.LocationIndex(id)
			if i < 0 {
				return nil, apperrors.ErrArtifactNotFound.WithDetail("location " + id)
			}
			s := &p.SceneSettings[i]
			if s.IsGenerating {
				return nil, apperrors.ErrGenerationBusy.WithDetail("location " + id)
			}
			ref, err := service.InlineImageFromDataURL(s.ReferenceImage)
			if err != nil {
				return nil, apperrors.ErrInvalidParam.WithDetail("location reference image: " + err.Error())
			}
			in := service.LocationImageInput{
				Description: s.Description,
				ArtStyle:    p.ArtStyle,
				AspectRatio: p.AspectRatio,
				Reference:   ref,
			}
			s.IsGenerating = true

			return func(ctx context.Context) (applyFunc, error) {
				img, err := w.gen.GenerateLocationImage(ctx, in)
				if err != nil {
					return nil, err
				}
				if img == nil || img.Data == "" {
					return nil, errEmptyImage
				}
				url := img.DataURL()
				return func(p *entity.Project) bool {
					i := p.LocationIndex(id)
					if i < 0 {
						return false
					}
					p.SceneSettings[i].ImageURL = url
					p.SceneSettings[i].IsGenerating = false
					return true
				}, nil
			}, nil
		},
		release: func(p *entity.Project) {
			if i := p.LocationIndex(id); i >= 0 {
				p.SceneSettings[i].IsGenerating = false
			}
		},
	}
}

// panelTask uploads 追加在解析出的参考之后，只用于本次生成
func (w *Workspace) panelTask(index int, uploads ...service.ReferenceImage) generationTask {
	return generationTask{
		jobType:  entity.JobTypeStoryboardImage,
		targetID: panelTargetID(index),
		begin: func(p *entity.Project) (callFunc, error) {
			syncPanels(p)
			panel, err := panelAt(p, index)
			if err != nil {
				return nil, err
			}
			if panel.IsGenerating {
				return nil, apperrors.ErrGenerationBusy.WithDetail(panelTargetID(index))
			}
			resolved := ResolveReferences(*panel, p)
			in := service.StoryboardImageInput{
				Shot:        panel.Shot.Clone(),
				Characters:  append([]entity.Character(nil), p.Characters...),
				Locations:   append([]entity.SceneSetting(nil), p.SceneSettings...),
				ArtStyle:    p.ArtStyle,
				AspectRatio: p.AspectRatio,
				References:  append(toServiceReferences(resolved.References), uploads...),
			}
			key := panel.Shot.Key()
			panel.IsGenerating = true

			return func(ctx context.Context) (applyFunc, error) {
				out, err := w.gen.GenerateStoryboardImage(ctx, in)
				if err != nil {
					return nil, err
				}
				if out == nil || out.Image.Data == "" {
					return nil, errEmptyImage
				}
				url := out.Image.DataURL()
				prompt := out.Prompt
				return func(p *entity.Project) bool {
					if index >= len(p.Storyboard) {
						return false
					}
					panel := &p.Storyboard[index]
					panel.IsGenerating = false
					if panel.Shot.Key() != key {
						return false
					}
					panel.ImageURL = url
					panel.Prompt = prompt
					return true
				}, nil
			}, nil
		},
		release: func(p *entity.Project) {
			if index < len(p.Storyboard) {
				p.Storyboard[index].IsGenerating = false
			}
		},
	}
}

func panelTargetID(index int) string {
	return fmt.Sprintf("panel-%d", index)
}
