package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/service"
	apperrors "storyboard-ai-api/pkg/errors"
	"storyboard-ai-api/pkg/logger"
	"storyboard-ai-api/pkg/metrics"
)

// GenerateScreenplay 根据故事构想生成剧本。
// force=false 且已有剧本时原样返回；失败时保留原剧本。
func (w *Workspace) GenerateScreenplay(ctx context.Context, force bool) ([]entity.Scene, error) {
	v, err := w.runBulk(ctx, entity.JobTypeScreenplay, force, func(ctx context.Context) (any, error) {
		p := w.registry.Snapshot()
		if !force && len(p.Screenplay) > 0 {
			return p.Screenplay, nil
		}
		if strings.TrimSpace(p.StoryConcept) == "" {
			return nil, apperrors.ErrStageLocked.WithDetail("story concept is empty")
		}

		out, err := w.gen.GenerateScreenplay(ctx, service.ScreenplayInput{
			Concept:       p.StoryConcept,
			Genre:         p.Genre,
			MaxCharacters: p.MaxCharacters,
			MaxScenes:     p.MaxScenes,
		})
		if err != nil {
			return nil, apperrors.ErrGenerationFailed.WithError(err)
		}
		if out == nil || len(out.Scenes) == 0 {
			return nil, apperrors.ErrGenerationFailed.WithDetail("screenplay is empty")
		}
		scenes := normalizeScenes(out.Scenes, out.Prompt)

		err = w.registry.Update(func(p *entity.Project) error {
			if !force && len(p.Screenplay) > 0 {
				return nil
			}
			p.Screenplay = scenes
			return nil
		})
		if err != nil {
			return nil, err
		}
		return w.registry.Snapshot().Screenplay, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]entity.Scene), nil
}

// ExtractCharacters 从剧本中抽取角色，数量不超过 maxCharacters
func (w *Workspace) ExtractCharacters(ctx context.Context, force bool) ([]entity.Character, error) {
	v, err := w.runBulk(ctx, entity.JobTypeCharacterExtract, force, func(ctx context.Context) (any, error) {
		p := w.registry.Snapshot()
		if !force && len(p.Characters) > 0 {
			return p.Characters, nil
		}
		if len(p.Screenplay) == 0 {
			return nil, apperrors.ErrStageLocked.WithDetail("screenplay is empty")
		}

		profiles, err := w.gen.ExtractCharacters(ctx, p.Screenplay, p.MaxCharacters)
		if err != nil {
			return nil, apperrors.ErrGenerationFailed.WithError(err)
		}
		characters := newCharacters(profiles, p.MaxCharacters)

		err = w.registry.Update(func(p *entity.Project) error {
			if !force && len(p.Characters) > 0 {
				return nil
			}
			p.Characters = characters
			return nil
		})
		if err != nil {
			return nil, err
		}
		return w.registry.Snapshot().Characters, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]entity.Character), nil
}

// ExtractLocations 从剧本中抽取场景设定
func (w *Workspace) ExtractLocations(ctx context.Context, force bool) ([]entity.SceneSetting, error) {
	v, err := w.runBulk(ctx, entity.JobTypeLocationExtract, force, func(ctx context.Context) (any, error) {
		p := w.registry.Snapshot()
		if !force && len(p.SceneSettings) > 0 {
			return p.SceneSettings, nil
		}
		if len(p.Screenplay) == 0 {
			return nil, apperrors.ErrStageLocked.WithDetail("screenplay is empty")
		}

		descriptions, err := w.gen.ExtractLocations(ctx, p.Screenplay)
		if err != nil {
			return nil, apperrors.ErrGenerationFailed.WithError(err)
		}
		locations := newLocations(descriptions)

		err = w.registry.Update(func(p *entity.Project) error {
			if !force && len(p.SceneSettings) > 0 {
				return nil
			}
			p.SceneSettings = locations
			return nil
		})
		if err != nil {
			return nil, err
		}
		return w.registry.Snapshot().SceneSettings, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]entity.SceneSetting), nil
}

// GenerateShotlist 根据剧本生成分镜表，成功后按位置重新对齐画格
func (w *Workspace) GenerateShotlist(ctx context.Context, force bool) ([]entity.Shot, error) {
	v, err := w.runBulk(ctx, entity.JobTypeShotlist, force, func(ctx context.Context) (any, error) {
		p := w.registry.Snapshot()
		if !force && len(p.Shotlist) > 0 {
			return p.Shotlist, nil
		}
		if len(p.Screenplay) == 0 {
			return nil, apperrors.ErrStageLocked.WithDetail("screenplay is empty")
		}

		shots, err := w.gen.GenerateShotlist(ctx, p.Screenplay)
		if err != nil {
			return nil, apperrors.ErrGenerationFailed.WithError(err)
		}
		if len(shots) == 0 {
			return nil, apperrors.ErrGenerationFailed.WithDetail("shotlist is empty")
		}
		if key, dup := duplicateShotKey(shots); dup {
			return nil, apperrors.ErrGenerationFailed.WithDetail("duplicate shot " + key.String())
		}

		err = w.registry.Update(func(p *entity.Project) error {
			if !force && len(p.Shotlist) > 0 {
				return nil
			}
			p.Shotlist = make([]entity.Shot, len(shots))
			for i := range shots {
				p.Shotlist[i] = shots[i].Clone()
			}
			p.Storyboard = ResyncPanels(p.Shotlist, p.Storyboard)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return w.registry.Snapshot().Shotlist, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]entity.Shot), nil
}

// runBulk 合并相同阶段的并发调用，并为每次实际执行记录任务
func (w *Workspace) runBulk(ctx context.Context, jobType entity.JobType, force bool, fn func(ctx context.Context) (any, error)) (any, error) {
	key := fmt.Sprintf("%s:%t", jobType, force)
	v, err, shared := w.bulk.Do(key, func() (any, error) {
		job := newJob(jobType, "", "")
		w.jobs.add(job)
		kind := string(jobType)
		start := time.Now()
		// 共享调用不随单个请求取消
		jctx := logger.WithContext(context.WithoutCancel(ctx), logger.JobIDKey, job.ID())
		jctx = service.WithJobID(jctx, job.ID())

		v, err := fn(jctx)
		metrics.GenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			job.finish(func(j *entity.GenerationJob) { j.Fail(err.Error()) })
			metrics.GenerationTotal.WithLabelValues(kind, string(entity.JobStatusFailed)).Inc()
			logger.Error(jctx, "bulk stage failed", err, "type", kind, "force", force)
			return nil, err
		}
		job.finish(func(j *entity.GenerationJob) { j.Complete() })
		metrics.GenerationTotal.WithLabelValues(kind, string(entity.JobStatusCompleted)).Inc()
		logger.Info(jctx, "bulk stage completed", "type", kind, "force", force,
			"duration_ms", time.Since(start).Milliseconds())
		return v, nil
	})
	if shared {
		logger.Debug(ctx, "bulk stage call shared", "type", string(jobType))
	}
	return v, err
}

// normalizeScenes 按返回顺序重编场次号 1..N，并附上生成提示词
func normalizeScenes(scenes []entity.Scene, prompt string) []entity.Scene {
	out := make([]entity.Scene, len(scenes))
	for i := range scenes {
		s := scenes[i].Clone()
		s.SceneNumber = i + 1
		if s.Dialogue == nil {
			s.Dialogue = []entity.Dialogue{}
		}
		s.Prompt = prompt
		out[i] = s
	}
	return out
}

func newCharacters(profiles []service.CharacterProfile, limit int) []entity.Character {
	out := make([]entity.Character, 0, len(profiles))
	for i, pr := range profiles {
		if limit > 0 && len(out) >= limit {
			break
		}
		name := strings.TrimSpace(pr.Name)
		if name == "" {
			continue
		}
		out = append(out, entity.Character{
			ID:          entity.NewArtifactID(entity.CharacterIDPrefix, i),
			Name:        name,
			Description: strings.TrimSpace(pr.Description),
		})
	}
	return out
}

func newLocations(descriptions []string) []entity.SceneSetting {
	out := make([]entity.SceneSetting, 0, len(descriptions))
	for i, d := range descriptions {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		out = append(out, entity.SceneSetting{
			ID:          entity.NewArtifactID(entity.LocationIDPrefix, i),
			Description: d,
		})
	}
	return out
}

func duplicateShotKey(shots []entity.Shot) (entity.ShotKey, bool) {
	seen := make(map[entity.ShotKey]struct{}, len(shots))
	for i := range shots {
		key := shots[i].Key()
		if _, ok := seen[key]; ok {
			return key, true
		}
		seen[key] = struct{}{}
	}
	return entity.ShotKey{}, false
}
