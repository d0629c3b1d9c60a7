package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/ports/driven"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

const tableState = "rag_pipeline_state"

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore persists pipeline watermarks in the rag_pipeline_state table.
// Load failures degrade to a zero state instead of erroring; losing the
// watermark only costs a redundant re-scan, never stored data.
type StateStore struct {
	client *Client
}

// NewStateStore creates a PostgREST-backed state store.
func NewStateStore(cfg Config) (*StateStore, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &StateStore{client: client}, nil
}

// stateRecord is the rag_pipeline_state table row shape.
type stateRecord struct {
	PipelineID    string            `json:"pipeline_id"`
	PipelineType  string            `json:"pipeline_type"`
	LastCheckTime string            `json:"last_check_time,omitempty"`
	KnownFiles    map[string]string `json:"known_files,omitempty"`
	LastRun       string            `json:"last_run,omitempty"`
}

// Load returns the persisted state, or a zero state when no record exists
// or the record cannot be read.
func (s *StateStore) Load(ctx context.Context, pipelineID string) (*domain.PipelineState, error) {
	var records []stateRecord
	q := url.Values{"pipeline_id": {eq(pipelineID)}, "select": {"*"}}
	if err := s.client.do(ctx, http.MethodGet, tableState, q, "", nil, &records); err != nil {
		logger.Warn("supabase: load state for %s: %v", pipelineID, err)
		return domain.NewPipelineState(pipelineID, ""), nil
	}
	if len(records) == 0 {
		return domain.NewPipelineState(pipelineID, ""), nil
	}

	rec := records[0]
	state := domain.NewPipelineState(pipelineID, rec.PipelineType)
	if rec.KnownFiles != nil {
		state.KnownFiles = rec.KnownFiles
	}
	if rec.LastCheckTime != "" {
		ts, err := time.Parse(time.RFC3339, rec.LastCheckTime)
		if err != nil {
			logger.Warn("supabase: invalid last_check_time %q for %s", rec.LastCheckTime, pipelineID)
		} else {
			state.LastCheckTime = ts.UTC()
		}
	}
	return state, nil
}

// Save upserts the state record for the pipeline.
func (s *StateStore) Save(ctx context.Context, state *domain.PipelineState) error {
	rec := stateRecord{
		PipelineID:   state.PipelineID,
		PipelineType: state.PipelineType,
		KnownFiles:   state.KnownFiles,
		LastRun:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	if !state.LastCheckTime.IsZero() {
		rec.LastCheckTime = state.LastCheckTime.UTC().Format(time.RFC3339Nano)
	}

	var existing []stateRecord
	q := url.Values{"pipeline_id": {eq(state.PipelineID)}, "select": {"pipeline_id"}}
	if err := s.client.do(ctx, http.MethodGet, tableState, q, "", nil, &existing); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStateStore, err)
	}

	if len(existing) > 0 {
		q = url.Values{"pipeline_id": {eq(state.PipelineID)}}
		if err := s.client.do(ctx, http.MethodPatch, tableState, q, "return=minimal", rec, nil); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStateStore, err)
		}
		return nil
	}
	if err := s.client.do(ctx, http.MethodPost, tableState, nil, "return=minimal", rec, nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStateStore, err)
	}
	return nil
}

// Close releases nothing.
func (s *StateStore) Close() error { return nil }
