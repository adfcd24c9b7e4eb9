package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/service"
	apperrors "storyboard-ai-api/pkg/errors"
)

func TestGenerateScreenplay(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{screenplay: &service.ScreenplayOutput{
		Scenes: []entity.Scene{
			{SceneNumber: 7, Title: "Harbor"},
			{SceneNumber: 3, Title: "Train"},
		},
		Prompt: "write a screenplay",
	}}
	w := newTestWorkspace(t, gen, nil)

	_, err := w.GenerateScreenplay(ctx, false)
	assert.ErrorIs(t, err, apperrors.ErrStageLocked, "concept is required")

	concept := "A courier crosses the border"
	_, err = w.UpdateSettings(ctx, SettingsUpdate{StoryConcept: &concept})
	require.NoError(t, err)

	scenes, err := w.GenerateScreenplay(ctx, false)
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	assert.Equal(t, 1, scenes[0].SceneNumber)
	assert.Equal(t, 2, scenes[1].SceneNumber)
	assert.Equal(t, "write a screenplay", scenes[0].Prompt)
	assert.NotNil(t, scenes[1].Dialogue)

	// 已有剧本且未强制时直接返回
	_, err = w.GenerateScreenplay(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"screenplay"}, gen.Calls())

	jobs := w.Jobs()
	require.NotEmpty(t, jobs)
	assert.Equal(t, entity.JobTypeScreenplay, jobs[0].JobType)
}

func TestBulkFailureKeepsPreviousOutput(t *testing.T) {
	ctx := context.Background()
	p := fullProject()
	gen := &fakeGenerator{err: errFake}
	w := newTestWorkspace(t, gen, p)

	_, err := w.GenerateScreenplay(ctx, true)
	assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)
	_, err = w.ExtractCharacters(ctx, true)
	assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)
	_, err = w.GenerateShotlist(ctx, true)
	assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)

	got := w.Project()
	assert.Equal(t, p.Screenplay, got.Screenplay)
	assert.Equal(t, p.Characters, got.Characters)
	assert.Equal(t, p.Shotlist, got.Shotlist)
}

func TestExtractCharacters_CapsAndAssignsIDs(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{characters: []service.CharacterProfile{
		{Name: "Ann", Description: "courier"},
		{Name: " "},
		{Name: "Bob", Description: "guard"},
		{Name: "Cy", Description: "conductor"},
	}}
	p := entity.NewProject()
	p.MaxCharacters = 2
	p.Screenplay = []entity.Scene{{SceneNumber: 1}}
	w := newTestWorkspace(t, gen, p)

	chars, err := w.ExtractCharacters(ctx, false)
	require.NoError(t, err)
	require.Len(t, chars, 2)
	assert.Equal(t, "Ann", chars[0].Name)
	assert.Equal(t, "Bob", chars[1].Name)
	assert.True(t, strings.HasPrefix(chars[0].ID, entity.CharacterIDPrefix+"-"))
	assert.NotEqual(t, chars[0].ID, chars[1].ID)
	assert.Empty(t, chars[0].Appearance)
}

func TestExtractLocations_RequiresScreenplay(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{locations: []string{"Harbor", "", "Attic"}}
	w := newTestWorkspace(t, gen, nil)

	_, err := w.ExtractLocations(ctx, false)
	assert.ErrorIs(t, err, apperrors.ErrStageLocked)

	require.NoError(t, w.registry.Update(func(p *entity.Project) error {
		p.Screenplay = []entity.Scene{{SceneNumber: 1}}
		return nil
	}))
	locs, err := w.ExtractLocations(ctx, false)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.True(t, strings.HasPrefix(locs[1].ID, entity.LocationIDPrefix+"-"))
}

func TestGenerateShotlist_ResyncsAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	p := fullProject()
	gen := &fakeGenerator{shots: []entity.Shot{
		{SceneNumber: 1, ShotNumber: 1, Description: "a"},
		{SceneNumber: 1, ShotNumber: 1, Description: "b"},
	}}
	w := newTestWorkspace(t, gen, p)

	_, err := w.GenerateShotlist(ctx, true)
	assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)

	gen.shots = testShots(3)
	shots, err := w.GenerateShotlist(ctx, true)
	require.NoError(t, err)
	assert.Len(t, shots, 3)

	board := w.Project().Storyboard
	require.Len(t, board, 3)
	assert.Equal(t, testImageURL, board[0].ImageURL, "panels keep their images by position")
	assert.Equal(t, "shot 1", board[0].Shot.Description)
	assert.False(t, board[2].HasImage())
}

func TestGenerateScreenplay_SurvivesCallerCancel(t *testing.T) {
	gen := &fakeGenerator{screenplay: &service.ScreenplayOutput{
		Scenes: []entity.Scene{{Title: "Harbor"}},
	}}
	p := entity.NewProject()
	p.StoryConcept = "A courier crosses the border"
	w := newTestWorkspace(t, gen, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scenes, err := w.GenerateScreenplay(ctx, false)
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.NoError(t, gen.screenplayCtxErr, "model call runs detached from the request")
	assert.Len(t, w.Project().Screenplay, 1)
}
