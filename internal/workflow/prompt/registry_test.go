package prompt

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_FormatsAllTemplates(t *testing.T) {
	r := NewRegistry()
	vars := map[string]any{
		"genre":          "Drama",
		"max_characters": 2,
		"max_scenes":     3,
		"concept":        "A courier crosses the border",
		"screenplay":     `[{"sceneNumber":1}]`,
		"aspect_ratio":   "16:9",
	}
	for _, id := range []PromptID{PromptScreenplayV1, PromptCharacterExtractV1, PromptLocationExtractV1, PromptShotlistV1} {
		tpl, err := r.ChatTemplate(id)
		require.NoError(t, err, id)

		msgs, err := tpl.Format(context.Background(), vars)
		require.NoError(t, err, id)
		require.Len(t, msgs, 2)
		assert.Equal(t, schema.System, msgs[0].Role)
		assert.Equal(t, schema.User, msgs[1].Role)
		assert.NotContains(t, msgs[1].Content, "{screenplay}")
	}
}

func TestRegistry_UnknownPrompt(t *testing.T) {
	_, err := NewRegistry().ChatTemplate("nope")
	assert.Error(t, err)
}
