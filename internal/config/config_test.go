package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, PipelineLocal, cfg.Pipeline.Type)
	assert.Equal(t, ModeContinuous, cfg.Pipeline.Mode)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.Interval)
	assert.Equal(t, 400, cfg.Content.Size)
	assert.Equal(t, 0, cfg.Content.Overlap)
	assert.Equal(t, 1500, cfg.Code.Size)
	assert.Equal(t, 150, cfg.Code.Overlap)
	assert.Equal(t, BackendSupabase, cfg.Storage.Backend)
	assert.Equal(t, []string{"application/pdf", "text/plain", "text/html", "text/csv"}, cfg.ContentTypes.Supported)
	assert.Contains(t, cfg.ContentTypes.Tabular, "text/csv")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[pipeline]
id = "docs-pipeline"
type = "local"
mode = "single"

[local]
directory = "/tmp/watched"

[content]
size = 800
overlap = 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "docs-pipeline", cfg.Pipeline.ID)
	assert.Equal(t, ModeSingle, cfg.Pipeline.Mode)
	assert.Equal(t, "/tmp/watched", cfg.Local.Directory)
	assert.Equal(t, 800, cfg.Content.Size)
	assert.Equal(t, 100, cfg.Content.Overlap)
	// Untouched sections keep their defaults.
	assert.Equal(t, 1500, cfg.Code.Size)
}

func TestLoadContentTypesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[local]
directory = "/tmp/watched"

[content_types]
supported = ["text/*"]
tabular = ["application/x-ndjson"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"text/*"}, cfg.ContentTypes.Supported)
	assert.Equal(t, []string{"application/x-ndjson"}, cfg.ContentTypes.Tabular)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("RAG_WATCH_DIRECTORY", "/data")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, PipelineLocal, cfg.Pipeline.Type)
	assert.Equal(t, "/data", cfg.Local.Directory)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RAG_PIPELINE_TYPE", "git")
	t.Setenv("RUN_MODE", "single")
	t.Setenv("RAG_POLL_INTERVAL", "30")
	t.Setenv("RAG_STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/rag")
	t.Setenv("EMBEDDING_MODEL_CHOICE", "text-embedding-3-large")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, PipelineGit, cfg.Pipeline.Type)
	assert.Equal(t, ModeSingle, cfg.Pipeline.Mode)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.Interval)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres://localhost/rag", cfg.Storage.Postgres.DSN)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Local.Directory = "/data"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("unknown pipeline type", func(t *testing.T) {
		cfg := base()
		cfg.Pipeline.Type = "dropbox"
		err := cfg.Validate()
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("unknown run mode", func(t *testing.T) {
		cfg := base()
		cfg.Pipeline.Mode = "burst"
		assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
	})

	t.Run("overlap equal to size", func(t *testing.T) {
		cfg := base()
		cfg.Content.Size = 100
		cfg.Content.Overlap = 100
		err := cfg.Validate()
		require.ErrorIs(t, err, domain.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "overlap")
	})

	t.Run("overlap larger than size", func(t *testing.T) {
		cfg := base()
		cfg.Code.Size = 100
		cfg.Code.Overlap = 150
		assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
	})

	t.Run("negative overlap", func(t *testing.T) {
		cfg := base()
		cfg.Content.Overlap = -1
		assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
	})

	t.Run("zero chunk size", func(t *testing.T) {
		cfg := base()
		cfg.Content.Size = 0
		assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
	})

	t.Run("local pipeline without directory", func(t *testing.T) {
		cfg := base()
		cfg.Local.Directory = ""
		assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
	})

	t.Run("unknown storage backend", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Backend = "mysql"
		assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
	})

	t.Run("unknown state driver", func(t *testing.T) {
		cfg := base()
		cfg.State.Driver = "redis"
		assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
	})
}
