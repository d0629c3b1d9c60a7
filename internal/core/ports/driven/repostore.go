package driven

import (
	"context"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

// RepositoryStore is the shared repository work queue. The web layer inserts
// records and sets them pending; the pipeline reads the queue and advances
// statuses, never creating or deleting records.
type RepositoryStore interface {
	// ListPending returns every repository with status "pending".
	ListPending(ctx context.Context) ([]domain.Repository, error)

	// UpdateStatus moves a repository to the given status. message is
	// stored alongside terminal error statuses and ignored otherwise.
	UpdateStatus(ctx context.Context, id int64, status domain.RepoStatus, message string) error
}
