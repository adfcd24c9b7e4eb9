package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("SB_TEST_HOST", "db.internal")

	out := expandEnv("host: ${SB_TEST_HOST:localhost}\nport: ${SB_TEST_PORT:5432}\nkey: ${SB_TEST_MISSING}")
	assert.Equal(t, "host: db.internal\nport: 5432\nkey: ${SB_TEST_MISSING}", out)
}

func TestLoadFrom_DefaultsAndEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	writeConfig(t, dir, "config.yaml", `
pipeline:
  batch_delay: 250ms
snapshot:
  driver: redis
`)
	writeConfig(t, dir, "config.test.yaml", `
pipeline:
  min_storyboard_panels: 3
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.BatchDelay)
	assert.Equal(t, 3, cfg.Pipeline.MinStoryboardPanels)
	assert.Equal(t, 200, cfg.Pipeline.JobHistory)
	assert.Equal(t, "redis", cfg.Snapshot.Driver)
	assert.Equal(t, "imagen-4.0-generate-001", cfg.Image.ImageModel)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
}

func TestLoadFrom_RejectsUnknownDriver(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "snapshot:\n  driver: s3\n")

	_, err := LoadFrom(dir)
	assert.ErrorContains(t, err, "unsupported snapshot driver")
}

func TestProviderFor(t *testing.T) {
	c := LLMConfig{DefaultProvider: "gemini", Workflows: map[string]string{"shotlist": "openai"}}
	assert.Equal(t, "openai", c.ProviderFor("shotlist"))
	assert.Equal(t, "gemini", c.ProviderFor("screenplay"))
}
