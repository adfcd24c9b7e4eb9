package entity

import "fmt"

// ShotKey 镜头复合键 (sceneNumber, shotNumber)
type ShotKey struct {
	SceneNumber int `json:"sceneNumber"`
	ShotNumber  int `json:"shotNumber"`
}

// String 返回 "场次.镜头" 形式
func (k ShotKey) String() string {
	return fmt.Sprintf("%d.%d", k.SceneNumber, k.ShotNumber)
}

// Shot 分镜表中的镜头
type Shot struct {
	SceneNumber int        `json:"sceneNumber"`
	ShotNumber  int        `json:"shotNumber"`
	Description string     `json:"description"`
	ERT         string     `json:"ert"`
	ShotSize    string     `json:"shotSize"`
	Perspective string     `json:"perspective"`
	Movement    string     `json:"movement"`
	Equipment   string     `json:"equipment"`
	Lens        string     `json:"lens"`
	AspectRatio string     `json:"aspectRatio"`
	Notes       string     `json:"notes"`
	VO          string     `json:"vo"`
	SFX         string     `json:"sfx"`
	Lighting    string     `json:"lighting,omitempty"`
	Music       string     `json:"music,omitempty"`
	Dialogue    []Dialogue `json:"dialogue,omitempty"`
}

// Key 返回镜头复合键
func (s *Shot) Key() ShotKey {
	return ShotKey{SceneNumber: s.SceneNumber, ShotNumber: s.ShotNumber}
}

// Clone 深拷贝镜头
func (s Shot) Clone() Shot {
	if s.Dialogue != nil {
		s.Dialogue = append([]Dialogue(nil), s.Dialogue...)
	}
	return s
}
