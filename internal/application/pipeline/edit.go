package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/service"
	apperrors "storyboard-ai-api/pkg/errors"
	"storyboard-ai-api/pkg/logger"
)

// PatchType 编辑文档格式
type PatchType string

const (
	// PatchTypeMerge RFC 7386 JSON merge patch
	PatchTypeMerge PatchType = "merge"
	// PatchTypeJSON RFC 6902 JSON patch
	PatchTypeJSON PatchType = "json-patch"
)

// Patch 针对单个构件的编辑
type Patch struct {
	Type PatchType
	Body json.RawMessage
}

// MergePatch 以 merge patch 构造编辑
func MergePatch(body []byte) Patch {
	return Patch{Type: PatchTypeMerge, Body: body}
}

// applyPatch 将编辑应用到 orig 的 JSON 表示上，并严格解码回 T
func applyPatch[T any](orig T, patch Patch) (T, error) {
	var zero T
	body := bytes.TrimSpace(patch.Body)
	if len(body) == 0 {
		return zero, apperrors.ErrInvalidParam.WithDetail("empty patch")
	}
	doc, err := json.Marshal(orig)
	if err != nil {
		return zero, apperrors.ErrInternalError.WithError(err)
	}

	var out []byte
	switch patch.Type {
	case PatchTypeJSON:
		p, err := jsonpatch.DecodePatch(body)
		if err != nil {
			return zero, apperrors.ErrInvalidParam.WithDetail("invalid json patch: " + err.Error())
		}
		out, err = p.Apply(doc)
		if err != nil {
			return zero, apperrors.ErrInvalidParam.WithDetail("failed to apply json patch: " + err.Error())
		}
	case PatchTypeMerge, "":
		if body[0] != '{' {
			return zero, apperrors.ErrInvalidParam.WithDetail("merge patch must be a JSON object")
		}
		out, err = jsonpatch.MergePatch(doc, body)
		if err != nil {
			return zero, apperrors.ErrInvalidParam.WithDetail("invalid merge patch: " + err.Error())
		}
	default:
		return zero, apperrors.ErrInvalidParam.WithDetail("unsupported patch type: " + string(patch.Type))
	}

	var next T
	dec := json.NewDecoder(bytes.NewReader(out))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		return zero, apperrors.ErrInvalidParam.WithDetail("patched document is invalid: " + err.Error())
	}
	return next, nil
}

func protectedField(name string) error {
	return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("field %q cannot be edited", name))
}

// PatchScene 编辑剧本场次
func (w *Workspace) PatchScene(ctx context.Context, sceneNumber int, patch Patch) (entity.Scene, error) {
	var out entity.Scene
	err := w.registry.Update(func(p *entity.Project) error {
		i := p.SceneIndex(sceneNumber)
		if i < 0 {
			return apperrors.ErrArtifactNotFound.WithDetail(fmt.Sprintf("scene %d", sceneNumber))
		}
		next, err := applyPatch(p.Screenplay[i], patch)
		if err != nil {
			return err
		}
		if next.SceneNumber != sceneNumber {
			return protectedField("sceneNumber")
		}
		next.Dialogue = nonNilDialogue(next.Dialogue)
		p.Screenplay[i] = next
		out = next
		return nil
	})
	if err != nil {
		return entity.Scene{}, err
	}
	logger.Debug(ctx, "scene updated", "scene", sceneNumber)
	return out, nil
}

func nonNilDialogue(in []entity.Dialogue) []entity.Dialogue {
	if in == nil {
		return []entity.Dialogue{}
	}
	return in
}

// PatchCharacter 编辑角色设定
func (w *Workspace) PatchCharacter(ctx context.Context, id string, patch Patch) (entity.Character, error) {
	var out entity.Character
	err := w.registry.Update(func(p *entity.Project) error {
		i := p.CharacterIndex(id)
		if i < 0 {
			return apperrors.ErrArtifactNotFound.WithDetail("character " + id)
		}
		orig := p.Characters[i]
		next, err := applyPatch(orig, patch)
		if err != nil {
			return err
		}
		switch {
		case next.ID != orig.ID:
			return protectedField("id")
		case next.IsGenerating != orig.IsGenerating:
			return protectedField("isGenerating")
		}
		if err := validateReferenceImage(next.ReferenceImage); err != nil {
			return err
		}
		p.Characters[i] = next
		out = next
		return nil
	})
	if err != nil {
		return entity.Character{}, err
	}
	logger.Debug(ctx, "character updated", "character_id", id)
	return out, nil
}

// PatchLocation 编辑场景设定
func (w *Workspace) PatchLocation(ctx context.Context, id string, patch Patch) (entity.SceneSetting, error) {
	var out entity.SceneSetting
	err := w.registry.Update(func(p *entity.Project) error {
		i := p.LocationIndex(id)
		if i < 0 {
			return apperrors.ErrArtifactNotFound.WithDetail("location " + id)
		}
		orig := p.SceneSettings[i]
		next, err := applyPatch(orig, patch)
		if err != nil {
			return err
		}
		switch {
		case next.ID != orig.ID:
			return protectedField("id")
		case next.IsGenerating != orig.IsGenerating:
			return protectedField("isGenerating")
		}
		if err := validateReferenceImage(next.ReferenceImage); err != nil {
			return err
		}
		p.SceneSettings[i] = next
		out = next
		return nil
	})
	if err != nil {
		return entity.SceneSetting{}, err
	}
	logger.Debug(ctx, "location updated", "location_id", id)
	return out, nil
}

// PatchShot 编辑镜头，并按位置刷新对应画格的镜头快照
func (w *Workspace) PatchShot(ctx context.Context, key entity.ShotKey, patch Patch) (entity.Shot, error) {
	var out entity.Shot
	err := w.registry.Update(func(p *entity.Project) error {
		i := p.ShotIndex(key)
		if i < 0 {
			return apperrors.ErrArtifactNotFound.WithDetail("shot " + key.String())
		}
		next, err := applyPatch(p.Shotlist[i], patch)
		if err != nil {
			return err
		}
		if next.Key() != key {
			return protectedField("sceneNumber/shotNumber")
		}
		p.Shotlist[i] = next.Clone()
		syncPanels(p)
		if i < len(p.Storyboard) {
			p.Storyboard[i].Shot = next.Clone()
		}
		out = next
		return nil
	})
	if err != nil {
		return entity.Shot{}, err
	}
	logger.Debug(ctx, "shot updated", "shot", key.String())
	return out, nil
}

// SavePanel 保存画格的镜头字段与参考列表（只作用于画格本身，不回写分镜表）；
// regenerate=true 时保存后立即开始生成，uploads 为仅本次生效的临时参考图。
func (w *Workspace) SavePanel(ctx context.Context, index int, patch Patch, regenerate bool, uploads ...string) (entity.StoryboardPanel, *Job, error) {
	extra, err := uploadReferences(uploads)
	if err != nil {
		return entity.StoryboardPanel{}, nil, err
	}
	if len(extra) > 0 && !regenerate {
		return entity.StoryboardPanel{}, nil, apperrors.ErrInvalidParam.WithDetail("uploaded references require regenerate")
	}

	var out entity.StoryboardPanel
	err = w.registry.Update(func(p *entity.Project) error {
		syncPanels(p)
		panel, err := panelAt(p, index)
		if err != nil {
			return err
		}
		orig := *panel
		next, err := applyPatch(orig, patch)
		if err != nil {
			return err
		}
		switch {
		case next.Shot.Key() != orig.Shot.Key():
			return protectedField("shot.sceneNumber/shot.shotNumber")
		case next.IsGenerating != orig.IsGenerating:
			return protectedField("isGenerating")
		case next.ImageURL != orig.ImageURL:
			return protectedField("imageUrl")
		}
		next.ReferenceImageIDs = dedupe(next.ReferenceImageIDs)
		*panel = next.Clone()
		out = next.Clone()
		return nil
	})
	if err != nil {
		return entity.StoryboardPanel{}, nil, err
	}
	logger.Debug(ctx, "panel saved", "panel", index, "regenerate", regenerate, "uploads", len(extra))
	if !regenerate {
		return out, nil, nil
	}
	job, err := w.startTask(ctx, w.panelTask(index, extra...), "", nil)
	if err != nil {
		return out, nil, err
	}
	return out, job, nil
}

func uploadReferences(uploads []string) ([]service.ReferenceImage, error) {
	out := make([]service.ReferenceImage, 0, len(uploads))
	for i, u := range uploads {
		img, err := service.InlineImageFromDataURL(strings.TrimSpace(u))
		if err != nil || img == nil {
			return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("uploads[%d] must be a base64 data URL", i))
		}
		n := i + 1
		out = append(out, service.ReferenceImage{
			ID:    fmt.Sprintf("upload-%d", n),
			Kind:  service.ReferenceKindUpload,
			Label: fmt.Sprintf("Uploaded reference %d", n),
			Image: *img,
		})
	}
	return out, nil
}

// AddCharacter 手动新增角色（空白设定）
func (w *Workspace) AddCharacter(ctx context.Context, name, description string) (entity.Character, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return entity.Character{}, apperrors.ErrInvalidParam.WithDetail("character name is required")
	}
	var out entity.Character
	err := w.registry.Update(func(p *entity.Project) error {
		out = entity.Character{
			ID:          entity.NewArtifactID(entity.CharacterIDPrefix, len(p.Characters)),
			Name:        name,
			Description: strings.TrimSpace(description),
		}
		p.Characters = append(p.Characters, out)
		return nil
	})
	if err != nil {
		return entity.Character{}, err
	}
	logger.Info(ctx, "character added", "character_id", out.ID)
	return out, nil
}

// AddLocation 手动新增场景设定
func (w *Workspace) AddLocation(ctx context.Context, description string) (entity.SceneSetting, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return entity.SceneSetting{}, apperrors.ErrInvalidParam.WithDetail("location description is required")
	}
	var out entity.SceneSetting
	err := w.registry.Update(func(p *entity.Project) error {
		out = entity.SceneSetting{
			ID:          entity.NewArtifactID(entity.LocationIDPrefix, len(p.SceneSettings)),
			Description: description,
		}
		p.SceneSettings = append(p.SceneSettings, out)
		return nil
	})
	if err != nil {
		return entity.SceneSetting{}, err
	}
	logger.Info(ctx, "location added", "location_id", out.ID)
	return out, nil
}

// DeleteCharacter 删除角色；画格上指向它的参考 ID 保留为悬空引用
func (w *Workspace) DeleteCharacter(ctx context.Context, id string) error {
	err := w.registry.Update(func(p *entity.Project) error {
		i := p.CharacterIndex(id)
		if i < 0 {
			return apperrors.ErrArtifactNotFound.WithDetail("character " + id)
		}
		p.Characters = append(p.Characters[:i], p.Characters[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "character deleted", "character_id", id)
	return nil
}

// DeleteLocation 删除场景设定
func (w *Workspace) DeleteLocation(ctx context.Context, id string) error {
	err := w.registry.Update(func(p *entity.Project) error {
		i := p.LocationIndex(id)
		if i < 0 {
			return apperrors.ErrArtifactNotFound.WithDetail("location " + id)
		}
		p.SceneSettings = append(p.SceneSettings[:i], p.SceneSettings[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "location deleted", "location_id", id)
	return nil
}

// SetCharacterReference 设置或清除（空串）角色的用户参考图
func (w *Workspace) SetCharacterReference(ctx context.Context, id, dataURL string) (entity.Character, error) {
	if err := validateReferenceImage(dataURL); err != nil {
		return entity.Character{}, err
	}
	var out entity.Character
	err := w.registry.Update(func(p *entity.Project) error {
		i := p.CharacterIndex(id)
		if i < 0 {
			return apperrors.ErrArtifactNotFound.WithDetail("character " + id)
		}
		p.Characters[i].ReferenceImage = dataURL
		out = p.Characters[i]
		return nil
	})
	return out, err
}

// SetLocationReference 设置或清除场景设定的用户参考图
func (w *Workspace) SetLocationReference(ctx context.Context, id, dataURL string) (entity.SceneSetting, error) {
	if err := validateReferenceImage(dataURL); err != nil {
		return entity.SceneSetting{}, err
	}
	var out entity.SceneSetting
	err := w.registry.Update(func(p *entity.Project) error {
		i := p.LocationIndex(id)
		if i < 0 {
			return apperrors.ErrArtifactNotFound.WithDetail("location " + id)
		}
		p.SceneSettings[i].ReferenceImage = dataURL
		out = p.SceneSettings[i]
		return nil
	})
	return out, err
}

func validateReferenceImage(dataURL string) error {
	if dataURL == "" {
		return nil
	}
	if _, _, err := entity.ParseDataURL(dataURL); err != nil {
		return apperrors.ErrInvalidParam.WithDetail("reference image must be a base64 data URL: " + err.Error())
	}
	return nil
}

// --- 画格参考列表 ---

// Storyboard 返回对齐后的画格列表
func (w *Workspace) Storyboard() []entity.StoryboardPanel {
	return w.Project().Storyboard
}

// Palette 返回可选参考图
func (w *Workspace) Palette() []Reference {
	return Palette(w.registry.Snapshot())
}

// PanelReferences 返回画格当前解析出的参考图及模式
func (w *Workspace) PanelReferences(index int) (Resolution, error) {
	p := w.Project()
	panel, err := panelAt(p, index)
	if err != nil {
		return Resolution{}, err
	}
	return ResolveReferences(*panel, p), nil
}

// AddPanelReference 向画格手动列表追加参考
func (w *Workspace) AddPanelReference(ctx context.Context, index int, id string) (Resolution, error) {
	return w.editPanelReferences(ctx, index, func(p *entity.Project) error {
		return AddReference(p, index, id)
	})
}

// RemovePanelReference 从画格手动列表移除参考
func (w *Workspace) RemovePanelReference(ctx context.Context, index int, id string) (Resolution, error) {
	return w.editPanelReferences(ctx, index, func(p *entity.Project) error {
		return RemoveReference(p, index, id)
	})
}

// ReorderPanelReferences 重排画格手动列表
func (w *Workspace) ReorderPanelReferences(ctx context.Context, index int, ids []string) (Resolution, error) {
	return w.editPanelReferences(ctx, index, func(p *entity.Project) error {
		return ReorderReferences(p, index, ids)
	})
}

// MovePanelReference 移动手动列表中的一项
func (w *Workspace) MovePanelReference(ctx context.Context, index, from, to int) (Resolution, error) {
	return w.editPanelReferences(ctx, index, func(p *entity.Project) error {
		return MoveReference(p, index, from, to)
	})
}

// ResetPanelReferences 清空手动列表，恢复自动解析
func (w *Workspace) ResetPanelReferences(ctx context.Context, index int) (Resolution, error) {
	return w.editPanelReferences(ctx, index, func(p *entity.Project) error {
		return ResetReferences(p, index)
	})
}

func (w *Workspace) editPanelReferences(ctx context.Context, index int, fn func(p *entity.Project) error) (Resolution, error) {
	var out Resolution
	err := w.registry.Update(func(p *entity.Project) error {
		syncPanels(p)
		if err := fn(p); err != nil {
			return err
		}
		out = ResolveReferences(p.Storyboard[index], p)
		return nil
	})
	if err != nil {
		return Resolution{}, err
	}
	logger.Debug(ctx, "panel references updated", "panel", index, "mode", string(out.Mode))
	return out, nil
}
