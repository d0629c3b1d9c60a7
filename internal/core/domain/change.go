package domain

import "time"

// ChangeEvent describes one changed source file within a poll cycle.
// It is created by a Watcher and discarded once the file is processed;
// change events are never persisted.
type ChangeEvent struct {
	// FileID is the stable, source-qualified identity of the file
	// (a path, a Drive file id, or "repo_<id>_<relpath>").
	FileID string

	// Name is the human-readable file name.
	Name string

	// MIMEType is the declared content type of the file.
	MIMEType string

	// WebViewLink is a URL (or file:// link) for opening the source file.
	WebViewLink string

	// ModifiedAt is the source's modification timestamp for the file.
	ModifiedAt time.Time

	// Trashed reports that the source file was removed. The orchestrator
	// deletes the stored records instead of reprocessing.
	Trashed bool

	// Meta carries watcher-specific details (export MIME type, local
	// path for repository files).
	Meta map[string]string
}
