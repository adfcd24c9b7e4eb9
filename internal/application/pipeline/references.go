package pipeline

import (
	"regexp"
	"strings"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/service"
	wfnode "storyboard-ai-api/internal/workflow/node"
	apperrors "storyboard-ai-api/pkg/errors"
)

// ReferenceMode 参考图选择方式
type ReferenceMode string

const (
	// ReferenceModeAuto 按镜头描述自动匹配
	ReferenceModeAuto ReferenceMode = "auto"
	// ReferenceModeExplicit 使用画格上保存的手动列表
	ReferenceModeExplicit ReferenceMode = "explicit"
)

const paletteTitleRunes = 20

// Reference 一张可作为参考的已生成图片
type Reference struct {
	ID       string                `json:"id"`
	Kind     service.ReferenceKind `json:"kind"`
	Title    string                `json:"title"`
	ImageURL string                `json:"imageUrl"`
}

// Resolution 参考图解析结果
type Resolution struct {
	Mode       ReferenceMode `json:"mode"`
	References []Reference   `json:"references"`
}

// IDs 返回参考 ID 列表
func (r Resolution) IDs() []string {
	ids := make([]string, len(r.References))
	for i := range r.References {
		ids[i] = r.References[i].ID
	}
	return ids
}

// MentionsName 判断 name 是否以完整单词形式（不区分大小写）出现在 text 中
func MentionsName(text, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// AutoReferences 自动解析：描述中点名且已有图的角色（按注册表顺序），再加上所有已有图的场景设定
func AutoReferences(shot entity.Shot, p *entity.Project) []Reference {
	refs := make([]Reference, 0)
	for i := range p.Characters {
		c := &p.Characters[i]
		if c.HasImage() && MentionsName(shot.Description, c.Name) {
			refs = append(refs, characterReference(c))
		}
	}
	for i := range p.SceneSettings {
		s := &p.SceneSettings[i]
		if s.HasImage() {
			refs = append(refs, locationReference(s))
		}
	}
	return refs
}

// ResolveReferences 解析画格的参考图。
// 存在手动列表时按列表顺序查找，悬空 ID 与无图构件被忽略；否则自动解析。
func ResolveReferences(panel entity.StoryboardPanel, p *entity.Project) Resolution {
	if !panel.HasExplicitReferences() {
		return Resolution{Mode: ReferenceModeAuto, References: AutoReferences(panel.Shot, p)}
	}
	refs := make([]Reference, 0, len(panel.ReferenceImageIDs))
	for _, id := range panel.ReferenceImageIDs {
		if ref, ok := lookupReference(p, id); ok {
			refs = append(refs, ref)
		}
	}
	return Resolution{Mode: ReferenceModeExplicit, References: refs}
}

// Palette 所有可选参考图（已有图的角色与场景设定）
func Palette(p *entity.Project) []Reference {
	out := make([]Reference, 0, len(p.Characters)+len(p.SceneSettings))
	for i := range p.Characters {
		if p.Characters[i].HasImage() {
			out = append(out, characterReference(&p.Characters[i]))
		}
	}
	for i := range p.SceneSettings {
		if p.SceneSettings[i].HasImage() {
			out = append(out, locationReference(&p.SceneSettings[i]))
		}
	}
	return out
}

func lookupReference(p *entity.Project, id string) (Reference, bool) {
	if i := p.CharacterIndex(id); i >= 0 && p.Characters[i].HasImage() {
		return characterReference(&p.Characters[i]), true
	}
	if i := p.LocationIndex(id); i >= 0 && p.SceneSettings[i].HasImage() {
		return locationReference(&p.SceneSettings[i]), true
	}
	return Reference{}, false
}

func characterReference(c *entity.Character) Reference {
	return Reference{
		ID:       c.ID,
		Kind:     service.ReferenceKindCharacter,
		Title:    "Character: " + c.Name,
		ImageURL: c.ImageURL,
	}
}

func locationReference(s *entity.SceneSetting) Reference {
	return Reference{
		ID:       s.ID,
		Kind:     service.ReferenceKindLocation,
		Title:    "Scene: " + wfnode.TruncateByRunes(s.Description, paletteTitleRunes) + "...",
		ImageURL: s.ImageURL,
	}
}

// toServiceReferences 转为生成服务入参；无法解析的 data URL 被跳过
func toServiceReferences(refs []Reference) []service.ReferenceImage {
	out := make([]service.ReferenceImage, 0, len(refs))
	for _, r := range refs {
		img, err := service.InlineImageFromDataURL(r.ImageURL)
		if err != nil || img == nil {
			continue
		}
		out = append(out, service.ReferenceImage{ID: r.ID, Kind: r.Kind, Label: r.Title, Image: *img})
	}
	return out
}

// --- 手动列表编辑 ---

// AddReference 追加参考 ID；已存在时为空操作。
// 画格处于自动模式时先以当前自动结果作为初始列表。
func AddReference(p *entity.Project, index int, id string) error {
	panel, err := panelAt(p, index)
	if err != nil {
		return err
	}
	if _, ok := lookupReference(p, id); !ok {
		return apperrors.ErrInvalidParam.WithDetail("reference must be a character or location with an image: " + id)
	}
	if !panel.HasExplicitReferences() {
		panel.ReferenceImageIDs = Resolution{References: AutoReferences(panel.Shot, p)}.IDs()
	}
	for _, existing := range panel.ReferenceImageIDs {
		if existing == id {
			return nil
		}
	}
	panel.ReferenceImageIDs = append(panel.ReferenceImageIDs, id)
	return nil
}

// RemoveReference 从手动列表移除 ID
func RemoveReference(p *entity.Project, index int, id string) error {
	panel, err := panelAt(p, index)
	if err != nil {
		return err
	}
	if !panel.HasExplicitReferences() {
		panel.ReferenceImageIDs = Resolution{References: AutoReferences(panel.Shot, p)}.IDs()
	}
	out := panel.ReferenceImageIDs[:0]
	for _, existing := range panel.ReferenceImageIDs {
		if existing != id {
			out = append(out, existing)
		}
	}
	panel.ReferenceImageIDs = out
	return nil
}

// ReorderReferences 以新顺序替换手动列表，ids 必须是当前列表的一个排列
func ReorderReferences(p *entity.Project, index int, ids []string) error {
	panel, err := panelAt(p, index)
	if err != nil {
		return err
	}
	if !samePermutation(panel.ReferenceImageIDs, ids) {
		return apperrors.ErrInvalidParam.WithDetail("reorder must be a permutation of the current reference list")
	}
	panel.ReferenceImageIDs = append([]string(nil), ids...)
	return nil
}

// MoveReference 将 from 位置的 ID 移到 to 位置
func MoveReference(p *entity.Project, index, from, to int) error {
	panel, err := panelAt(p, index)
	if err != nil {
		return err
	}
	ids := panel.ReferenceImageIDs
	if from < 0 || from >= len(ids) || to < 0 || to >= len(ids) {
		return apperrors.ErrInvalidParam.WithDetail("reference position out of range")
	}
	moved := ids[from]
	ids = append(ids[:from], ids[from+1:]...)
	ids = append(ids[:to], append([]string{moved}, ids[to:]...)...)
	panel.ReferenceImageIDs = ids
	return nil
}

// ResetReferences 清空手动列表，恢复自动解析
func ResetReferences(p *entity.Project, index int) error {
	panel, err := panelAt(p, index)
	if err != nil {
		return err
	}
	panel.ReferenceImageIDs = nil
	return nil
}

// SetReferences 直接设置手动列表（去重，保持首次出现顺序）
func SetReferences(p *entity.Project, index int, ids []string) error {
	panel, err := panelAt(p, index)
	if err != nil {
		return err
	}
	panel.ReferenceImageIDs = dedupe(ids)
	return nil
}

func panelAt(p *entity.Project, index int) (*entity.StoryboardPanel, error) {
	if index < 0 || index >= len(p.Storyboard) {
		return nil, apperrors.ErrArtifactNotFound.WithDetail("storyboard panel index out of range")
	}
	return &p.Storyboard[index], nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func samePermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, id := range a {
		counts[id]++
	}
	for _, id := range b {
		counts[id]--
		if counts[id] < 0 {
			return false
		}
	}
	return true
}
