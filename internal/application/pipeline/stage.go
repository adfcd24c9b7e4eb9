package pipeline

import (
	"strings"

	"storyboard-ai-api/internal/domain/entity"
)

// DefaultMinStoryboardPanels 分镜阶段完成所需的最少已出图画格数
const DefaultMinStoryboardPanels = 6

// StageEvaluator 阶段完成判定（纯函数，无副作用）
type StageEvaluator struct {
	MinStoryboardPanels int
}

// NewStageEvaluator 创建判定器，minPanels<=0 时使用默认值
func NewStageEvaluator(minPanels int) StageEvaluator {
	if minPanels <= 0 {
		minPanels = DefaultMinStoryboardPanels
	}
	return StageEvaluator{MinStoryboardPanels: minPanels}
}

// IsStageComplete 判定 stage 是否完成。
// 早于 current 的阶段视为完成，晚于 current 的阶段视为未完成，
// 只有 current 本身按各阶段规则判定。
func (e StageEvaluator) IsStageComplete(stage, current entity.Stage, p *entity.Project) bool {
	switch {
	case !stage.Valid():
		return false
	case stage < current:
		return true
	case stage > current:
		return false
	}
	return e.criteriaMet(stage, p)
}

// CanNavigate 后退总是允许；前进只能到下一阶段且当前阶段已完成
func (e StageEvaluator) CanNavigate(from, to entity.Stage, p *entity.Project) bool {
	if !to.Valid() || !from.Valid() {
		return false
	}
	if to <= from {
		return true
	}
	return to == from+1 && e.IsStageComplete(from, from, p)
}

func (e StageEvaluator) criteriaMet(stage entity.Stage, p *entity.Project) bool {
	if p == nil {
		return false
	}
	switch stage {
	case entity.StageProject:
		return strings.TrimSpace(p.Title) != ""
	case entity.StageIdea:
		return strings.TrimSpace(p.StoryConcept) != ""
	case entity.StageScreenplay:
		return len(p.Screenplay) > 0
	case entity.StageCharacters:
		return charactersStageMet(p)
	case entity.StageShotlist:
		return len(p.Shotlist) > 0
	case entity.StageStoryboard:
		return countImagedPanels(p) >= e.MinStoryboardPanels
	default:
		// Export 之后没有可解锁的阶段
		return false
	}
}

// charactersStageMet 所有角色都有图（无角色时视为满足），且至少一个场景设定存在并有图
func charactersStageMet(p *entity.Project) bool {
	for i := range p.Characters {
		if !p.Characters[i].HasImage() {
			return false
		}
	}
	for i := range p.SceneSettings {
		if p.SceneSettings[i].HasImage() {
			return true
		}
	}
	return false
}

func countImagedPanels(p *entity.Project) int {
	n := 0
	for i := range p.Storyboard {
		if p.Storyboard[i].HasImage() {
			n++
		}
	}
	return n
}
