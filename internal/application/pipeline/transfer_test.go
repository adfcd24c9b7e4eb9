package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-ai-api/internal/domain/entity"
	apperrors "storyboard-ai-api/pkg/errors"
)

func fullProject() *entity.Project {
	p := referenceProject()
	p.Title = "Night Train"
	p.StoryConcept = "A courier crosses the border"
	p.Screenplay = []entity.Scene{
		{SceneNumber: 1, Title: "Harbor", Description: "Fog", Dialogue: []entity.Dialogue{{Character: "Ann", Line: "Go."}}},
	}
	p.Storyboard[0].ImageURL = testImageURL
	p.Storyboard[0].ReferenceImageIDs = []string{"char-ann"}
	return p
}

func TestImport_InvalidLeavesProjectUnchanged(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, &fakeGenerator{}, fullProject())
	before, err := w.Export(ctx)
	require.NoError(t, err)

	invalid := []string{
		``,
		`{"title": "x", "unknownField": 1}`,
		`{"title": "x"} {"title": "y"}`,
		`{"screenplay": [{"sceneNumber": 1}, {"sceneNumber": 1}]}`,
		`{"screenplay": [{"sceneNumber": 0}]}`,
		`{"characters": [{"id": "a"}], "sceneSettings": [{"id": "a"}]}`,
		`{"characters": [{"name": "no id"}]}`,
		`{"shotlist": [{"sceneNumber": 1, "shotNumber": 1}, {"sceneNumber": 1, "shotNumber": 1}]}`,
		`{"storyboard": [{"shot": {}, "referenceImageIds": ["a", "a"]}]}`,
		`{"aspectRatio": "2:1"}`,
		`{"maxScenes": -1}`,
		`{"maxCharacters": 0}`,
		`{"maxScenes": 0}`,
		`[1, 2, 3]`,
		`null`,
		`"project"`,
	}
	for _, doc := range invalid {
		_, err := w.Import(ctx, []byte(doc))
		assert.ErrorIs(t, err, apperrors.ErrImportInvalid, doc)
	}

	after, err := w.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestImport_MissingFieldsUseDefaults(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, &fakeGenerator{}, fullProject())

	p, err := w.Import(ctx, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultGenre, p.Genre)
	assert.Equal(t, entity.DefaultArtStyle, p.ArtStyle)
	assert.Equal(t, entity.DefaultStyleGuide, p.StyleGuide)
	assert.Equal(t, entity.DefaultAspectRatio, p.AspectRatio)
	assert.Equal(t, entity.DefaultMaxCharacters, p.MaxCharacters)
	assert.Equal(t, entity.DefaultMaxScenes, p.MaxScenes)
	assert.Empty(t, p.Characters)
	assert.NotNil(t, p.Storyboard)

	p, err = w.Import(ctx, []byte(`{"title": "Short", "maxScenes": 3}`))
	require.NoError(t, err)
	assert.Equal(t, "Short", p.Title)
	assert.Equal(t, 3, p.MaxScenes)
	assert.Equal(t, entity.DefaultMaxCharacters, p.MaxCharacters)
}

func TestImport_ReplacesAndResets(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, &fakeGenerator{}, nil)
	title := "x"
	_, err := w.UpdateSettings(ctx, SettingsUpdate{Title: &title})
	require.NoError(t, err)
	_, err = w.Advance(ctx)
	require.NoError(t, err)

	src := fullProject()
	src.Characters[0].IsGenerating = true
	doc, err := json.Marshal(src)
	require.NoError(t, err)

	p, err := w.Import(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "Night Train", p.Title)
	assert.False(t, p.Characters[0].IsGenerating, "busy flags are cleared on import")
	assert.Equal(t, entity.StageProject, w.CurrentStage())
}

func TestExport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, &fakeGenerator{}, fullProject())
	require.NoError(t, w.registry.Update(func(p *entity.Project) error {
		p.Storyboard[1].IsGenerating = true
		return nil
	}))

	doc, err := w.Export(ctx)
	require.NoError(t, err)
	assert.NotContains(t, string(doc), "isGenerating")

	other := newTestWorkspace(t, &fakeGenerator{}, nil)
	_, err = other.Import(ctx, doc)
	require.NoError(t, err)
	again, err := other.Export(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(doc), string(again))
}
