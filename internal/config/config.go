// Package config loads pipeline configuration from a TOML file with
// environment variable overrides. A .env file in the working directory is
// honoured so container deployments and local runs share one mechanism.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

// Pipeline type identifiers accepted by the --pipeline flag and the
// RAG_PIPELINE_TYPE environment variable.
const (
	PipelineLocal       = "local"
	PipelineGoogleDrive = "google_drive"
	PipelineGit         = "git"
)

// Run modes accepted by the --mode flag and the RUN_MODE environment
// variable.
const (
	ModeContinuous = "continuous"
	ModeSingle     = "single"
)

// Storage backend identifiers.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

// State store driver identifiers.
const (
	StateDriverBackend = "backend"
	StateDriverSQLite  = "sqlite"
)

// ChunkSettings controls the sliding window chunker for one content class.
type ChunkSettings struct {
	// Size is the window length in characters.
	Size int `toml:"size"`
	// Overlap is how many characters consecutive windows share.
	Overlap int `toml:"overlap"`
}

// PipelineConfig identifies the pipeline instance and its run behaviour.
type PipelineConfig struct {
	// ID is the pipeline instance identity used as the state record key.
	ID string `toml:"id"`
	// Type selects the watcher: local, google_drive or git.
	Type string `toml:"type"`
	// Mode is continuous or single.
	Mode string `toml:"mode"`
	// Interval is the poll interval for continuous mode.
	Interval time.Duration `toml:"interval"`
}

// ContentTypesConfig holds the MIME allow-lists for ingestion.
type ContentTypesConfig struct {
	// Supported filters cloud files before download. Entries are exact
	// MIME types or major-type wildcards like "text/*".
	Supported []string `toml:"supported"`
	// Tabular identifies files that are stored as schema plus rows in
	// addition to chunked text. Entries are matched as prefixes.
	Tabular []string `toml:"tabular"`
}

// LocalConfig configures the filesystem watcher.
type LocalConfig struct {
	// Directory is the root directory to watch.
	Directory string `toml:"directory"`
	// ReconcileDeletes enables deletion detection for files that were
	// previously seen but are no longer present on disk.
	ReconcileDeletes bool `toml:"reconcile_deletes"`
}

// DriveConfig configures the Google Drive watcher.
type DriveConfig struct {
	// FolderID restricts the watch to one folder subtree. Empty means
	// the whole Drive.
	FolderID string `toml:"folder_id"`
	// CredentialsPath points at an OAuth client credentials JSON file.
	CredentialsPath string `toml:"credentials_path"`
	// TokenPath points at the cached OAuth token file.
	TokenPath string `toml:"token_path"`
}

// GitConfig configures the repository queue watcher.
type GitConfig struct {
	// WorkDir is where repositories are cloned. Defaults to a
	// subdirectory of the OS temp dir.
	WorkDir string `toml:"work_dir"`
	// Token is an optional GitHub token for default branch resolution
	// and private clones.
	Token string `toml:"token"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// APIKey authenticates against the OpenAI-compatible endpoint.
	APIKey string `toml:"api_key"`
	// BaseURL overrides the API endpoint. Empty means the OpenAI default.
	BaseURL string `toml:"base_url"`
	// Model is the embedding model name.
	Model string `toml:"model"`
	// Dimensions is the embedding vector size.
	Dimensions int `toml:"dimensions"`
	// BatchSize caps how many texts are sent per API request.
	BatchSize int `toml:"batch_size"`
}

// SupabaseConfig configures the PostgREST-style HTTP backend.
type SupabaseConfig struct {
	// URL is the project base URL.
	URL string `toml:"url"`
	// ServiceKey is the service role key.
	ServiceKey string `toml:"service_key"`
}

// PostgresConfig configures the direct Postgres backend.
type PostgresConfig struct {
	// DSN is the connection string.
	DSN string `toml:"dsn"`
}

// StorageConfig selects and configures the document store backend.
type StorageConfig struct {
	// Backend is supabase or postgres.
	Backend  string         `toml:"backend"`
	Supabase SupabaseConfig `toml:"supabase"`
	Postgres PostgresConfig `toml:"postgres"`
}

// StateConfig selects where pipeline state is persisted.
type StateConfig struct {
	// Driver is backend (the document store's database) or sqlite.
	Driver string `toml:"driver"`
	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `toml:"sqlite_path"`
}

// Config is the root configuration document.
type Config struct {
	Pipeline     PipelineConfig     `toml:"pipeline"`
	Content      ChunkSettings      `toml:"content"`
	Code         ChunkSettings      `toml:"code"`
	ContentTypes ContentTypesConfig `toml:"content_types"`
	Local        LocalConfig        `toml:"local"`
	Drive        DriveConfig        `toml:"drive"`
	Git          GitConfig          `toml:"git"`
	Embedding    EmbeddingConfig    `toml:"embedding"`
	Storage      StorageConfig      `toml:"storage"`
	State        StateConfig        `toml:"state"`
}

// Default returns a configuration with every tunable at its default.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			ID:       "default",
			Type:     PipelineLocal,
			Mode:     ModeContinuous,
			Interval: 60 * time.Second,
		},
		Content: ChunkSettings{Size: 400, Overlap: 0},
		Code:    ChunkSettings{Size: 1500, Overlap: 150},
		ContentTypes: ContentTypesConfig{
			Supported: []string{"application/pdf", "text/plain", "text/html", "text/csv"},
			Tabular:   []string{"csv", "xlsx", "text/csv", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		},
		Embedding: EmbeddingConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  100,
		},
		Storage: StorageConfig{Backend: BackendSupabase},
		State:   StateConfig{Driver: StateDriverBackend},
	}
}

// Load reads the TOML file at path (if it exists), applies environment
// overrides and validates the result. An empty path skips the file and
// uses defaults plus environment only.
func Load(path string) (*Config, error) {
	// Missing .env is not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RAG_PIPELINE_ID"); v != "" {
		c.Pipeline.ID = v
	}
	if v := os.Getenv("RAG_PIPELINE_TYPE"); v != "" {
		c.Pipeline.Type = v
	}
	if v := os.Getenv("RUN_MODE"); v != "" {
		c.Pipeline.Mode = v
	}
	if v := os.Getenv("RAG_POLL_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Pipeline.Interval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("RAG_WATCH_DIRECTORY"); v != "" {
		c.Local.Directory = v
	}
	if v := os.Getenv("GOOGLE_DRIVE_FOLDER_ID"); v != "" {
		c.Drive.FolderID = v
	}
	if v := os.Getenv("GOOGLE_DRIVE_CREDENTIALS_PATH"); v != "" {
		c.Drive.CredentialsPath = v
	}
	if v := os.Getenv("GOOGLE_DRIVE_TOKEN_PATH"); v != "" {
		c.Drive.TokenPath = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.Git.Token = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("EMBEDDING_MODEL_CHOICE"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("RAG_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		c.Storage.Supabase.URL = v
	}
	if v := os.Getenv("SUPABASE_SERVICE_KEY"); v != "" {
		c.Storage.Supabase.ServiceKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("RAG_STATE_DRIVER"); v != "" {
		c.State.Driver = v
	}
	if v := os.Getenv("RAG_STATE_SQLITE_PATH"); v != "" {
		c.State.SQLitePath = v
	}
}

// Validate checks cross-field constraints. Chunker settings are rejected
// here so a bad overlap never reaches the chunker at runtime.
func (c *Config) Validate() error {
	switch c.Pipeline.Type {
	case PipelineLocal, PipelineGoogleDrive, PipelineGit:
	default:
		return fmt.Errorf("%w: unknown pipeline type %q", domain.ErrInvalidConfig, c.Pipeline.Type)
	}

	switch c.Pipeline.Mode {
	case ModeContinuous, ModeSingle:
	default:
		return fmt.Errorf("%w: unknown run mode %q", domain.ErrInvalidConfig, c.Pipeline.Mode)
	}

	if c.Pipeline.Interval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}

	for _, cs := range []struct {
		name     string
		settings ChunkSettings
	}{
		{"content", c.Content},
		{"code", c.Code},
	} {
		if cs.settings.Size <= 0 {
			return fmt.Errorf("%w: %s chunk size must be positive", domain.ErrInvalidConfig, cs.name)
		}
		if cs.settings.Overlap < 0 {
			return fmt.Errorf("%w: %s chunk overlap must not be negative", domain.ErrInvalidConfig, cs.name)
		}
		if cs.settings.Overlap >= cs.settings.Size {
			return fmt.Errorf("%w: %s chunk overlap %d must be smaller than size %d",
				domain.ErrInvalidConfig, cs.name, cs.settings.Overlap, cs.settings.Size)
		}
	}

	switch c.Storage.Backend {
	case BackendSupabase, BackendPostgres:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidConfig, c.Storage.Backend)
	}

	switch c.State.Driver {
	case StateDriverBackend, StateDriverSQLite:
	default:
		return fmt.Errorf("%w: unknown state driver %q", domain.ErrInvalidConfig, c.State.Driver)
	}

	if c.Pipeline.Type == PipelineLocal && c.Local.Directory == "" {
		return fmt.Errorf("%w: local pipeline requires a watch directory", domain.ErrInvalidConfig)
	}

	return nil
}
