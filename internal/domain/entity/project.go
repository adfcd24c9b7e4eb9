// Package entity 定义领域实体
package entity

import "strings"

// 项目默认值
const (
	DefaultGenre         = "Action"
	DefaultMaxCharacters = 2
	DefaultMaxScenes     = 8
	DefaultStyleGuide    = "cinematic, hyper-realistic, high detail, 4k"
	DefaultArtStyle      = "3D Pixar/Disney style"
	DefaultAspectRatio   = "16:9"
)

// Genres 可选题材
var Genres = []string{
	"Action", "Animation", "Comedy", "Commercial", "Documentary", "Drama",
	"Educational", "Fantasy", "Horror", "Music Video", "Mystery", "Romance",
	"Science Fiction", "Thriller",
}

// ArtStyles 可选画风
var ArtStyles = []string{
	"3D Pixar/Disney style",
	"Anime style",
	"Semi-realistic",
	"Cute Cartoon",
}

// AspectRatios 支持的画面比例
var AspectRatios = []string{"16:9", "9:16", "4:3", "3:4", "1:1"}

// Project 分镜项目聚合根
type Project struct {
	Title         string            `json:"title"`
	Genre         string            `json:"genre"`
	MaxCharacters int               `json:"maxCharacters"`
	MaxScenes     int               `json:"maxScenes"`
	StoryConcept  string            `json:"storyConcept"`
	Screenplay    []Scene           `json:"screenplay"`
	Characters    []Character       `json:"characters"`
	Shotlist      []Shot            `json:"shotlist"`
	Storyboard    []StoryboardPanel `json:"storyboard"`
	StyleGuide    string            `json:"styleGuide"`
	ArtStyle      string            `json:"artStyle"`
	AspectRatio   string            `json:"aspectRatio,omitempty"`
	SceneSettings []SceneSetting    `json:"sceneSettings"`
}

// NewProject 创建初始项目
func NewProject() *Project {
	return &Project{
		Genre:         DefaultGenre,
		MaxCharacters: DefaultMaxCharacters,
		MaxScenes:     DefaultMaxScenes,
		Screenplay:    []Scene{},
		Characters:    []Character{},
		Shotlist:      []Shot{},
		Storyboard:    []StoryboardPanel{},
		StyleGuide:    DefaultStyleGuide,
		ArtStyle:      DefaultArtStyle,
		AspectRatio:   DefaultAspectRatio,
		SceneSettings: []SceneSetting{},
	}
}

// Clone 深拷贝项目
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	out := *p
	out.Screenplay = make([]Scene, len(p.Screenplay))
	for i := range p.Screenplay {
		out.Screenplay[i] = p.Screenplay[i].Clone()
	}
	out.Characters = append([]Character(nil), p.Characters...)
	if out.Characters == nil {
		out.Characters = []Character{}
	}
	out.Shotlist = make([]Shot, len(p.Shotlist))
	for i := range p.Shotlist {
		out.Shotlist[i] = p.Shotlist[i].Clone()
	}
	out.Storyboard = make([]StoryboardPanel, len(p.Storyboard))
	for i := range p.Storyboard {
		out.Storyboard[i] = p.Storyboard[i].Clone()
	}
	out.SceneSettings = append([]SceneSetting(nil), p.SceneSettings...)
	if out.SceneSettings == nil {
		out.SceneSettings = []SceneSetting{}
	}
	return &out
}

// Normalize 补齐缺省字段，保证集合非 nil
func (p *Project) Normalize() {
	if p.Screenplay == nil {
		p.Screenplay = []Scene{}
	}
	if p.Characters == nil {
		p.Characters = []Character{}
	}
	if p.Shotlist == nil {
		p.Shotlist = []Shot{}
	}
	if p.Storyboard == nil {
		p.Storyboard = []StoryboardPanel{}
	}
	if p.SceneSettings == nil {
		p.SceneSettings = []SceneSetting{}
	}
	if p.AspectRatio == "" {
		p.AspectRatio = DefaultAspectRatio
	}
}

// ClearBusy 清除所有忙碌标记
func (p *Project) ClearBusy() {
	for i := range p.Characters {
		p.Characters[i].IsGenerating = false
	}
	for i := range p.SceneSettings {
		p.SceneSettings[i].IsGenerating = false
	}
	for i := range p.Storyboard {
		p.Storyboard[i].IsGenerating = false
	}
}

// CharacterIndex 按 ID 查找角色下标，不存在返回 -1
func (p *Project) CharacterIndex(id string) int {
	for i := range p.Characters {
		if p.Characters[i].ID == id {
			return i
		}
	}
	return -1
}

// LocationIndex 按 ID 查找场景设定下标，不存在返回 -1
func (p *Project) LocationIndex(id string) int {
	for i := range p.SceneSettings {
		if p.SceneSettings[i].ID == id {
			return i
		}
	}
	return -1
}

// SceneIndex 按场次号查找下标
func (p *Project) SceneIndex(sceneNumber int) int {
	for i := range p.Screenplay {
		if p.Screenplay[i].SceneNumber == sceneNumber {
			return i
		}
	}
	return -1
}

// ShotIndex 按复合键查找镜头下标
func (p *Project) ShotIndex(key ShotKey) int {
	for i := range p.Shotlist {
		if p.Shotlist[i].Key() == key {
			return i
		}
	}
	return -1
}

// IsSupportedAspectRatio 检查画面比例是否受支持
func IsSupportedAspectRatio(ratio string) bool {
	ratio = strings.TrimSpace(ratio)
	for _, r := range AspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}
