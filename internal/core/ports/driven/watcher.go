package driven

import (
	"context"
	"time"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

// Watcher produces change events for one source kind.
// Each watcher variant (local filesystem, Google Drive, git repositories)
// implements this interface; the orchestrator drives exactly one watcher
// per poll loop.
type Watcher interface {
	// Type returns the watcher type identifier, also used as the
	// pipeline_type value in persisted state.
	Type() string

	// PipelineID returns the configured pipeline instance identity.
	PipelineID() string

	// Validate checks that the watcher is properly configured and can
	// reach its source. For the filesystem this checks the root exists;
	// for API sources it makes a lightweight call.
	Validate(ctx context.Context) error

	// ListChanges returns every file created or modified after since,
	// including Trashed events for files the source reports as removed.
	// A zero since means "everything".
	ListChanges(ctx context.Context, since time.Time) ([]domain.ChangeEvent, error)

	// FetchContent returns the raw bytes for a change event.
	FetchContent(ctx context.Context, ev domain.ChangeEvent) ([]byte, error)

	// EndCycle is called once after the orchestrator has processed a
	// change set. Watchers with per-cycle bookkeeping (the repository
	// watcher finalising queue statuses) hook it; others return nil.
	EndCycle(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// KnownFilesAware is implemented by watchers whose change detection
// depends on the previously processed file set. The orchestrator calls
// SetKnownFiles with the persisted state before each poll cycle.
type KnownFilesAware interface {
	SetKnownFiles(known map[string]string)
}
