package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/service"
	apperrors "storyboard-ai-api/pkg/errors"
)

func TestPatchCharacter_MergePatch(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, &fakeGenerator{}, referenceProject())

	c, err := w.PatchCharacter(ctx, "char-ann", MergePatch([]byte(`{"name":"Anna","hair":"red"}`)))
	require.NoError(t, err)
	assert.Equal(t, "Anna", c.Name)
	assert.Equal(t, "red", c.Hair)
	assert.Equal(t, testImageURL, c.ImageURL)

	_, err = w.PatchCharacter(ctx, "char-ann", MergePatch([]byte(`{"id":"other"}`)))
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
	_, err = w.PatchCharacter(ctx, "char-ann", MergePatch([]byte(`{"isGenerating":true}`)))
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
	_, err = w.PatchCharacter(ctx, "char-ann", MergePatch([]byte(`{"nickname":"A"}`)))
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
	_, err = w.PatchCharacter(ctx, "char-ann", MergePatch([]byte(`{"referenceImage":"http://x"}`)))
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
	_, err = w.PatchCharacter(ctx, "nope", MergePatch([]byte(`{}`)))
	assert.ErrorIs(t, err, apperrors.ErrArtifactNotFound)
}

func TestPatchLocation_JSONPatch(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, &fakeGenerator{}, referenceProject())

	loc, err := w.PatchLocation(ctx, "loc-attic", Patch{
		Type: PatchTypeJSON,
		Body: []byte(`[{"op":"replace","path":"/description","value":"Cold attic"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Cold attic", loc.Description)

	_, err = w.PatchLocation(ctx, "loc-attic", Patch{Type: PatchTypeJSON, Body: []byte(`{"op":"bad"}`)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
}

func TestPatchScene_ProtectsSceneNumber(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, &fakeGenerator{}, fullProject())

	s, err := w.PatchScene(ctx, 1, MergePatch([]byte(`{"title":"Dock","dialogue":null}`)))
	require.NoError(t, err)
	assert.Equal(t, "Dock", s.Title)
	assert.NotNil(t, s.Dialogue)

	_, err = w.PatchScene(ctx, 1, MergePatch([]byte(`{"sceneNumber":2}`)))
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
	_, err = w.PatchScene(ctx, 5, MergePatch([]byte(`{"title":"x"}`)))
	assert.ErrorIs(t, err, apperrors.ErrArtifactNotFound)
}

func TestPatchShot_RefreshesPanel(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, &fakeGenerator{}, fullProject())
	key := entity.ShotKey{SceneNumber: 1, ShotNumber: 1}

	shot, err := w.PatchShot(ctx, key, MergePatch([]byte(`{"description":"Ann alone","lens":"35mm"}`)))
	require.NoError(t, err)
	assert.Equal(t, "35mm", shot.Lens)

	panel := w.Project().Storyboard[0]
	assert.Equal(t, "Ann alone", panel.Shot.Description)
	assert.Equal(t, testImageURL, panel.ImageURL)

	_, err = w.PatchShot(ctx, key, MergePatch([]byte(`{"shotNumber":9}`)))
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
}

func TestSavePanel(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	w := newTestWorkspace(t, gen, fullProject())

	panel, job, err := w.SavePanel(ctx, 1, MergePatch([]byte(
		`{"shot":{"description":"Bob at the rail"},"referenceImageIds":["char-bob","char-bob","loc-harbor"]}`)), false)
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.Equal(t, "Bob at the rail", panel.Shot.Description)
	assert.Equal(t, []string{"char-bob", "loc-harbor"}, panel.ReferenceImageIDs)
	assert.Equal(t, "Annie stares at the sea", w.Project().Shotlist[1].Description, "panel edits stay on the panel")
	assert.Empty(t, gen.Calls())

	_, _, err = w.SavePanel(ctx, 1, MergePatch([]byte(`{"imageUrl":"data:image/png;base64,eA=="}`)), false)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)

	_, job, err = w.SavePanel(ctx, 1, MergePatch([]byte(`{"prompt":"custom"}`)), true)
	require.NoError(t, err)
	require.NotNil(t, job)
	final, err := job.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, final.Status)
	assert.Equal(t, []string{"char-bob", "loc-harbor"}, refIDs(gen))
}

func refIDs(gen *fakeGenerator) []string {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	ids := make([]string, 0, len(gen.lastStoryboard.References))
	for _, r := range gen.lastStoryboard.References {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestSavePanel_UploadedReferencesForOneGeneration(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	w := newTestWorkspace(t, gen, referenceProject())
	upload := entity.DataURL("image/jpeg", "cmVm")

	_, _, err := w.SavePanel(ctx, 1, MergePatch([]byte(`{}`)), false, upload)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam, "uploads need regenerate")
	_, _, err = w.SavePanel(ctx, 1, MergePatch([]byte(`{}`)), true, "not a data url")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
	assert.Empty(t, gen.Calls())

	_, job, err := w.SavePanel(ctx, 1, MergePatch([]byte(`{}`)), true, upload)
	require.NoError(t, err)
	require.NotNil(t, job)
	final, err := job.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, final.Status)

	refs := gen.lastStoryboard.References
	require.Len(t, refs, 2)
	assert.Equal(t, "loc-harbor", refs[0].ID)
	assert.Equal(t, service.ReferenceKindUpload, refs[1].Kind)
	assert.Equal(t, "cmVm", refs[1].Image.Data)

	panel := w.Project().Storyboard[1]
	assert.Empty(t, panel.ReferenceImageIDs, "uploads are not stored on the panel")
	assert.Equal(t, testImageURL, panel.ImageURL)
}

func TestAddAndDeleteArtifacts(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, &fakeGenerator{}, fullProject())

	c, err := w.AddCharacter(ctx, "  Dee ", "")
	require.NoError(t, err)
	assert.Equal(t, "Dee", c.Name)
	_, err = w.AddCharacter(ctx, " ", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)

	loc, err := w.AddLocation(ctx, "Station")
	require.NoError(t, err)

	// 删除不级联：画格上的引用成为悬空 ID，解析时被忽略
	require.NoError(t, w.DeleteCharacter(ctx, "char-ann"))
	assert.Equal(t, []string{"char-ann"}, w.Project().Storyboard[0].ReferenceImageIDs)
	res, err := w.PanelReferences(0)
	require.NoError(t, err)
	assert.Equal(t, ReferenceModeExplicit, res.Mode)
	assert.Empty(t, res.References)

	require.NoError(t, w.DeleteLocation(ctx, loc.ID))
	assert.ErrorIs(t, w.DeleteLocation(ctx, loc.ID), apperrors.ErrArtifactNotFound)
}

func TestSetCharacterReference(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, &fakeGenerator{}, fullProject())

	ref := entity.DataURL("image/jpeg", "cmVm")
	c, err := w.SetCharacterReference(ctx, "char-bob", ref)
	require.NoError(t, err)
	assert.Equal(t, ref, c.ReferenceImage)

	_, err = w.SetCharacterReference(ctx, "char-bob", "not a data url")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)

	c, err = w.SetCharacterReference(ctx, "char-bob", "")
	require.NoError(t, err)
	assert.Empty(t, c.ReferenceImage)

	l, err := w.SetLocationReference(ctx, "loc-attic", ref)
	require.NoError(t, err)
	assert.Equal(t, ref, l.ReferenceImage)
}
