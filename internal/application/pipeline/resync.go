package pipeline

import "storyboard-ai-api/internal/domain/entity"

// ResyncPanels 按位置将画格与镜头对齐。
// 前 min(N,M) 个画格保留图片、提示词与参考列表并刷新镜头快照；
// 多余画格被丢弃，新增镜头得到空画格。
func ResyncPanels(shots []entity.Shot, panels []entity.StoryboardPanel) []entity.StoryboardPanel {
	out := make([]entity.StoryboardPanel, len(shots))
	for i := range shots {
		if i < len(panels) {
			panel := panels[i].Clone()
			panel.Shot = shots[i].Clone()
			out[i] = panel
			continue
		}
		out[i] = entity.NewStoryboardPanel(shots[i])
	}
	return out
}

// panelsOutOfSync 画格数与镜头数不一致
func panelsOutOfSync(p *entity.Project) bool {
	return len(p.Storyboard) != len(p.Shotlist)
}

// syncPanels 在数量不一致时重建画格
func syncPanels(p *entity.Project) {
	if panelsOutOfSync(p) {
		p.Storyboard = ResyncPanels(p.Shotlist, p.Storyboard)
	}
}
