package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-ai-api/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{LLM: config.LLMConfig{
		DefaultProvider: "gemini",
		Providers: map[string]config.ProviderConfig{
			"gemini": {APIKey: "k", BaseURL: "http://localhost:1/v1", Model: "gemini-2.5-flash", MaxTokens: 1024},
		},
		Workflows: map[string]string{"shotlist": "openai"},
	}}
}

func TestEinoFactory_ProviderFor(t *testing.T) {
	f := NewEinoFactory(testConfig())
	assert.Equal(t, "openai", f.ProviderFor("shotlist"))
	assert.Equal(t, "gemini", f.ProviderFor("screenplay"))
}

func TestEinoFactory_GetCachesAndRejectsUnknown(t *testing.T) {
	f := NewEinoFactory(testConfig())
	ctx := context.Background()

	m1, err := f.Default(ctx)
	require.NoError(t, err)
	m2, err := f.Get(ctx, "gemini")
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	_, err = f.Get(ctx, "missing")
	assert.Error(t, err)
}
