package domain

import "time"

// PipelineState is the persisted watermark of one pipeline instance.
// It only bounds the next scan window; correctness of stored content is
// guaranteed by the replace-on-reprocess rule, never by this record.
type PipelineState struct {
	// PipelineID identifies the pipeline instance (primary key).
	PipelineID string

	// PipelineType names the watcher kind ("local", "google_drive", "git").
	PipelineType string

	// LastCheckTime is the watermark: sources are queried for changes
	// after this instant. Zero means "scan everything since the epoch".
	LastCheckTime time.Time

	// KnownFiles maps file identity to the last successfully processed
	// modification timestamp (RFC 3339). Entries are advanced only after
	// a file is fully stored, so failed files are retried next cycle.
	KnownFiles map[string]string

	// LastRun records when state was last written.
	LastRun time.Time
}

// NewPipelineState returns an empty state for a pipeline that has never run.
func NewPipelineState(pipelineID, pipelineType string) *PipelineState {
	return &PipelineState{
		PipelineID:   pipelineID,
		PipelineType: pipelineType,
		KnownFiles:   make(map[string]string),
	}
}
