package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"storyboard-ai-api/internal/domain/entity"
	apperrors "storyboard-ai-api/pkg/errors"
	"storyboard-ai-api/pkg/logger"
)

// Export 导出完整项目文档，忙碌标记不会写出
func (w *Workspace) Export(ctx context.Context) ([]byte, error) {
	return EncodeProject(w.Project())
}

// EncodeProject 序列化项目
func EncodeProject(p *entity.Project) ([]byte, error) {
	out := p.Clone()
	out.Normalize()
	out.ClearBusy()
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}
	return b, nil
}

// Import 用文档整体替换项目。校验失败时不做任何修改；
// 成功时停止批量生成、清除忙碌标记并回到第一阶段。
func (w *Workspace) Import(ctx context.Context, doc []byte) (*entity.Project, error) {
	p, err := ValidateDocument(doc)
	if err != nil {
		logger.Warn(ctx, "project import rejected", "error", err.Error())
		return nil, err
	}

	w.StopAll(ctx)
	w.registry.Replace(p)
	w.mu.Lock()
	w.stage = entity.StageProject
	w.mu.Unlock()

	logger.Info(ctx, "project imported",
		"scenes", len(p.Screenplay),
		"characters", len(p.Characters),
		"locations", len(p.SceneSettings),
		"shots", len(p.Shotlist),
	)
	return w.registry.Snapshot(), nil
}

// ValidateDocument 严格解码并校验项目文档
func ValidateDocument(doc []byte) (*entity.Project, error) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return nil, apperrors.ErrImportInvalid.WithDetail("document is empty")
	}

	if doc[0] != '{' {
		return nil, apperrors.ErrImportInvalid.WithDetail("document must be a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	// 缺省字段沿用新项目默认值
	p := entity.NewProject()
	if err := dec.Decode(p); err != nil {
		return nil, apperrors.ErrImportInvalid.WithDetail("decode: " + err.Error())
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, apperrors.ErrImportInvalid.WithDetail("unexpected data after project document")
	}

	if err := validateProject(p); err != nil {
		return nil, apperrors.ErrImportInvalid.WithDetail(err.Error())
	}
	p.Normalize()
	p.ClearBusy()
	return p, nil
}

func validateProject(p *entity.Project) error {
	if p.MaxCharacters < 1 || p.MaxScenes < 1 {
		return fmt.Errorf("maxCharacters and maxScenes must be positive")
	}
	if p.AspectRatio != "" && !entity.IsSupportedAspectRatio(p.AspectRatio) {
		return fmt.Errorf("unsupported aspect ratio %q", p.AspectRatio)
	}

	scenes := make(map[int]struct{}, len(p.Screenplay))
	for i := range p.Screenplay {
		n := p.Screenplay[i].SceneNumber
		if n <= 0 {
			return fmt.Errorf("screenplay[%d]: scene number must be positive", i)
		}
		if _, ok := scenes[n]; ok {
			return fmt.Errorf("duplicate scene number %d", n)
		}
		scenes[n] = struct{}{}
	}

	ids := make(map[string]struct{}, len(p.Characters)+len(p.SceneSettings))
	checkID := func(kind string, i int, id string) error {
		if id == "" {
			return fmt.Errorf("%s[%d]: id is required", kind, i)
		}
		if _, ok := ids[id]; ok {
			return fmt.Errorf("duplicate artifact id %q", id)
		}
		ids[id] = struct{}{}
		return nil
	}
	for i := range p.Characters {
		if err := checkID("characters", i, p.Characters[i].ID); err != nil {
			return err
		}
	}
	for i := range p.SceneSettings {
		if err := checkID("sceneSettings", i, p.SceneSettings[i].ID); err != nil {
			return err
		}
	}

	if key, dup := duplicateShotKey(p.Shotlist); dup {
		return fmt.Errorf("duplicate shot %s", key)
	}

	for i := range p.Storyboard {
		seen := make(map[string]struct{}, len(p.Storyboard[i].ReferenceImageIDs))
		for _, id := range p.Storyboard[i].ReferenceImageIDs {
			if _, ok := seen[id]; ok {
				return fmt.Errorf("storyboard[%d]: duplicate reference %q", i, id)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}
