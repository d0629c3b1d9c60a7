package driven

import (
	"context"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

// DocumentStore is the idempotent persistence gateway for derived records.
// Two interchangeable implementations exist: a PostgREST-style HTTP backend
// (discrete calls, self-healing ordering) and a Postgres backend (one
// transaction per file). Both guarantee that for any file identity the
// visible chunk/row/metadata records reflect exactly one content version.
type DocumentStore interface {
	// ReplaceFile atomically replaces every stored record derived from
	// the file: it deletes existing chunks, rows and metadata for
	// art.FileID, upserts the metadata record, then inserts the new rows
	// and chunks. Safe to re-run after a partial failure.
	ReplaceFile(ctx context.Context, art domain.FileArtifacts) error

	// DeleteFile removes every chunk, row and metadata record for the
	// file identity. Used when a watcher reports the file as trashed.
	DeleteFile(ctx context.Context, fileID string) error

	// Close releases the backend connection or client.
	Close() error
}
