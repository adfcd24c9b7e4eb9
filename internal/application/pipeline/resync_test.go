package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-ai-api/internal/domain/entity"
)

func imagedPanels(shots []entity.Shot) []entity.StoryboardPanel {
	panels := make([]entity.StoryboardPanel, len(shots))
	for i := range shots {
		panels[i] = entity.StoryboardPanel{
			Shot:              shots[i],
			ImageURL:          testImageURL,
			Prompt:            shots[i].Description,
			ReferenceImageIDs: []string{"char-1"},
		}
	}
	return panels
}

func TestResyncPanels_Shrink(t *testing.T) {
	panels := imagedPanels(testShots(5))
	shots := testShots(3)
	shots[1].Description = "rewritten"

	out := ResyncPanels(shots, panels)
	require.Len(t, out, 3)
	for i := range out {
		assert.Equal(t, testImageURL, out[i].ImageURL)
		assert.Equal(t, []string{"char-1"}, out[i].ReferenceImageIDs)
		assert.Equal(t, shots[i], out[i].Shot)
	}
	// 图片与提示词按位置保留，镜头快照刷新
	assert.Equal(t, "shot 2", out[1].Prompt)
	assert.Equal(t, "rewritten", out[1].Shot.Description)
}

func TestResyncPanels_Grow(t *testing.T) {
	panels := imagedPanels(testShots(2))
	shots := testShots(4)

	out := ResyncPanels(shots, panels)
	require.Len(t, out, 4)
	assert.True(t, out[0].HasImage())
	assert.True(t, out[1].HasImage())
	assert.False(t, out[2].HasImage())
	assert.False(t, out[3].HasImage())
	assert.Empty(t, out[3].ReferenceImageIDs)
	assert.Equal(t, shots[3], out[3].Shot)
}

func TestResyncPanels_DoesNotAliasInput(t *testing.T) {
	panels := imagedPanels(testShots(1))
	out := ResyncPanels(testShots(1), panels)
	out[0].ReferenceImageIDs[0] = "changed"
	assert.Equal(t, "char-1", panels[0].ReferenceImageIDs[0])
}

func TestWorkspace_ProjectResyncsLazily(t *testing.T) {
	p := entity.NewProject()
	p.Shotlist = testShots(3)
	w := newTestWorkspace(t, &fakeGenerator{}, p)

	got := w.Project()
	assert.Len(t, got.Storyboard, 3)
	assert.Len(t, w.registry.Snapshot().Storyboard, 3)
}
