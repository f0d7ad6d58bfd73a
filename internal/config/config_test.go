package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.Home.Base)
	assert.Equal(t, "imdb", cfg.Home.Category)
	assert.Equal(t, "lakehouse/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 1800, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, "sqlite", cfg.Ingest.Driver)
	assert.Equal(t, "bronze", cfg.Ingest.Schema)
	assert.Equal(t, 10000, cfg.Ingest.BatchSize)
	assert.Equal(t, 3, cfg.Pipeline.Concurrency)
	assert.False(t, cfg.Pipeline.Strict)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
home:
  parent: /srv/lake
  category: movies
ingest:
  driver: postgres
  database_url: postgres://localhost/lake
log:
  level: debug
  format: console
pipeline:
  concurrency: 7
  strict: true
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/lake", cfg.Home.Parent)
	assert.Equal(t, "movies", cfg.Home.Category)
	assert.Equal(t, "data", cfg.Home.Base) // default kept
	assert.Equal(t, "postgres", cfg.Ingest.Driver)
	assert.Equal(t, "postgres://localhost/lake", cfg.Ingest.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Pipeline.Strict)
}

func TestHomeLayout(t *testing.T) {
	cfg := &Config{}
	cfg.Home.Parent = "/srv/lake"

	h := cfg.HomeLayout()
	assert.Equal(t, "/srv/lake", h.Parent)
	assert.Equal(t, "data", h.Base)
	assert.Equal(t, "imdb", h.Category)
	assert.Equal(t, filepath.Join("/srv/lake", "data", "imdb"), h.Path())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
