package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Character 角色设定
type Character struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Age            string `json:"age"`
	Personality    string `json:"personality"`
	Appearance     string `json:"appearance"`
	Hair           string `json:"hair"`
	Skin           string `json:"skin"`
	Outfit         string `json:"outfit"`
	Accessories    string `json:"accessories"`
	ImageURL       string `json:"imageUrl,omitempty"`
	ReferenceImage string `json:"referenceImage,omitempty"`
	IsGenerating   bool   `json:"isGenerating,omitempty"`
}

// HasImage 是否已有生成图
func (c *Character) HasImage() bool {
	return c.ImageURL != ""
}

// SceneSetting 场景设定（地点）
type SceneSetting struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	ImageURL       string `json:"imageUrl,omitempty"`
	ReferenceImage string `json:"referenceImage,omitempty"`
	IsGenerating   bool   `json:"isGenerating,omitempty"`
}

// HasImage 是否已有生成图
func (s *SceneSetting) HasImage() bool {
	return s.ImageURL != ""
}

// ID 前缀
const (
	CharacterIDPrefix = "char"
	LocationIDPrefix  = "loc"
)

// NewArtifactID 生成形如 char-<毫秒时间戳>-<序号>-<短随机串> 的 ID
func NewArtifactID(prefix string, index int) string {
	return fmt.Sprintf("%s-%d-%d-%s", prefix, time.Now().UnixMilli(), index, uuid.NewString()[:8])
}
