package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// Load returns the persisted pipeline state, or a zero state when no
// record exists or the record cannot be read.
func (s *Store) Load(ctx context.Context, pipelineID string) (*domain.PipelineState, error) {
	var (
		pipelineType  string
		lastCheckTime sql.NullTime
		knownFiles    []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT pipeline_type, last_check_time, known_files
		FROM rag_pipeline_state WHERE pipeline_id = $1`, pipelineID).
		Scan(&pipelineType, &lastCheckTime, &knownFiles)
	if err == sql.ErrNoRows {
		return domain.NewPipelineState(pipelineID, ""), nil
	}
	if err != nil {
		logger.Warn("postgres: load state for %s: %v", pipelineID, err)
		return domain.NewPipelineState(pipelineID, ""), nil
	}

	state := domain.NewPipelineState(pipelineID, pipelineType)
	if lastCheckTime.Valid {
		state.LastCheckTime = lastCheckTime.Time.UTC()
	}
	if len(knownFiles) > 0 {
		if err := json.Unmarshal(knownFiles, &state.KnownFiles); err != nil {
			logger.Warn("postgres: invalid known_files for %s: %v", pipelineID, err)
			state.KnownFiles = make(map[string]string)
		}
	}
	return state, nil
}

// Save upserts the state record for the pipeline.
func (s *Store) Save(ctx context.Context, state *domain.PipelineState) error {
	knownFiles, err := json.Marshal(state.KnownFiles)
	if err != nil {
		return fmt.Errorf("%w: marshal known_files: %v", domain.ErrStateStore, err)
	}

	var lastCheck any
	if !state.LastCheckTime.IsZero() {
		lastCheck = state.LastCheckTime.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rag_pipeline_state (pipeline_id, pipeline_type, last_check_time, known_files, last_run)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pipeline_id) DO UPDATE SET
			pipeline_type = EXCLUDED.pipeline_type,
			last_check_time = EXCLUDED.last_check_time,
			known_files = EXCLUDED.known_files,
			last_run = EXCLUDED.last_run`,
		state.PipelineID, state.PipelineType, lastCheck, knownFiles, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: save state for %s: %v", domain.ErrStateStore, state.PipelineID, err)
	}
	return nil
}
