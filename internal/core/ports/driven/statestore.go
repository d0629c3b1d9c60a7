package driven

import (
	"context"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

// StateStore persists pipeline watermarks across restarts.
type StateStore interface {
	// Load returns the state for a pipeline instance. When no record
	// exists it returns a zero-valued state and no error; a watcher that
	// has never run simply re-scans from the epoch.
	Load(ctx context.Context, pipelineID string) (*domain.PipelineState, error)

	// Save upserts the state record. Timestamps are normalised to UTC
	// before persisting.
	Save(ctx context.Context, state *domain.PipelineState) error

	// Close releases the underlying connection.
	Close() error
}
