// Package sqlite provides a local, file-backed state store. It lets a
// pipeline keep its watermark across restarts without reaching the
// document store's database, mirroring the config-file fallback of
// deployments that run without a shared backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/ports/driven"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_state (
	pipeline_id TEXT PRIMARY KEY,
	pipeline_type TEXT NOT NULL DEFAULT '',
	last_check_time TEXT,
	known_files TEXT NOT NULL DEFAULT '{}',
	last_run TEXT
);
`

// StateStore persists pipeline state in a local SQLite database.
type StateStore struct {
	db *sql.DB
}

// NewStateStore opens (and creates if needed) the database at path.
func NewStateStore(path string) (*StateStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite: state database path is required", domain.ErrInvalidConfig)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	// WAL keeps readers from blocking the end-of-cycle write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &StateStore{db: db}, nil
}

// Load returns the persisted state, or a zero state when no row exists.
func (s *StateStore) Load(ctx context.Context, pipelineID string) (*domain.PipelineState, error) {
	var (
		pipelineType  string
		lastCheckTime sql.NullString
		knownFiles    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT pipeline_type, last_check_time, known_files
		FROM pipeline_state WHERE pipeline_id = ?`, pipelineID).
		Scan(&pipelineType, &lastCheckTime, &knownFiles)
	if err == sql.ErrNoRows {
		return domain.NewPipelineState(pipelineID, ""), nil
	}
	if err != nil {
		logger.Warn("sqlite: load state for %s: %v", pipelineID, err)
		return domain.NewPipelineState(pipelineID, ""), nil
	}

	state := domain.NewPipelineState(pipelineID, pipelineType)
	if lastCheckTime.Valid && lastCheckTime.String != "" {
		ts, err := time.Parse(time.RFC3339Nano, lastCheckTime.String)
		if err != nil {
			logger.Warn("sqlite: invalid last_check_time %q for %s", lastCheckTime.String, pipelineID)
		} else {
			state.LastCheckTime = ts.UTC()
		}
	}
	if err := json.Unmarshal([]byte(knownFiles), &state.KnownFiles); err != nil {
		logger.Warn("sqlite: invalid known_files for %s: %v", pipelineID, err)
		state.KnownFiles = make(map[string]string)
	}
	return state, nil
}

// Save upserts the state row for the pipeline.
func (s *StateStore) Save(ctx context.Context, state *domain.PipelineState) error {
	knownFiles, err := json.Marshal(state.KnownFiles)
	if err != nil {
		return fmt.Errorf("%w: marshal known_files: %v", domain.ErrStateStore, err)
	}

	var lastCheck any
	if !state.LastCheckTime.IsZero() {
		lastCheck = state.LastCheckTime.UTC().Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_state (pipeline_id, pipeline_type, last_check_time, known_files, last_run)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (pipeline_id) DO UPDATE SET
			pipeline_type = excluded.pipeline_type,
			last_check_time = excluded.last_check_time,
			known_files = excluded.known_files,
			last_run = excluded.last_run`,
		state.PipelineID, state.PipelineType, lastCheck, string(knownFiles),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: save state for %s: %v", domain.ErrStateStore, state.PipelineID, err)
	}
	return nil
}

// Close closes the database.
func (s *StateStore) Close() error {
	return s.db.Close()
}
