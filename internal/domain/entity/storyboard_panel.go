package entity

// StoryboardPanel 分镜画格，与镜头一一对应
type StoryboardPanel struct {
	Shot              Shot     `json:"shot"`
	ImageURL          string   `json:"imageUrl,omitempty"`
	Prompt            string   `json:"prompt,omitempty"`
	IsGenerating      bool     `json:"isGenerating,omitempty"`
	ReferenceImageIDs []string `json:"referenceImageIds,omitempty"`
}

// NewStoryboardPanel 基于镜头创建空画格
func NewStoryboardPanel(shot Shot) StoryboardPanel {
	return StoryboardPanel{Shot: shot.Clone()}
}

// HasImage 是否已有生成图
func (p *StoryboardPanel) HasImage() bool {
	return p.ImageURL != ""
}

// HasExplicitReferences 是否存在手动指定的参考列表
func (p *StoryboardPanel) HasExplicitReferences() bool {
	return len(p.ReferenceImageIDs) > 0
}

// Clone 深拷贝画格
func (p StoryboardPanel) Clone() StoryboardPanel {
	p.Shot = p.Shot.Clone()
	if p.ReferenceImageIDs != nil {
		p.ReferenceImageIDs = append([]string(nil), p.ReferenceImageIDs...)
	}
	return p
}
