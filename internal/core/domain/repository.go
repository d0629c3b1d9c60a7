package domain

import "time"

// RepoStatus is the lifecycle state of a queued repository. The web layer
// enqueues work by setting a repository to StatusPending; the pipeline owns
// every other transition and must never leave a repository in an
// intermediate status after a failure.
type RepoStatus string

const (
	// StatusPending marks a repository waiting to be analysed.
	StatusPending RepoStatus = "pending"

	// StatusCloning marks a repository currently being cloned or pulled.
	StatusCloning RepoStatus = "cloning"

	// StatusAnalyzing marks a repository whose files are being indexed.
	StatusAnalyzing RepoStatus = "analyzing"

	// StatusCloned is the terminal success status.
	StatusCloned RepoStatus = "cloned"

	// StatusError is the terminal failure status.
	StatusError RepoStatus = "error"
)

// Repository is one record of the shared repository work queue. The pipeline
// never creates or deletes these records, it only advances Status.
type Repository struct {
	// ID is the queue record identity.
	ID int64

	// Name is the repository's short name, used as the clone directory.
	Name string

	// URL is the clone URL.
	URL string

	// MainBranch is the branch to analyse. Empty means "resolve the
	// default branch".
	MainBranch string

	// Status is the current lifecycle state.
	Status RepoStatus

	// LastError holds the failure message when Status is StatusError.
	LastError string

	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time
}
