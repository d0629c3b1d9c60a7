package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/ports/driven"
)

const tableRepositories = "repositories"

// Ensure RepositoryStore implements the interface.
var _ driven.RepositoryStore = (*RepositoryStore)(nil)

// RepositoryStore reads and advances the shared repository queue. The web
// layer owns record creation; this store only lists pending work and
// updates statuses.
type RepositoryStore struct {
	client *Client
}

// NewRepositoryStore creates a PostgREST-backed repository store.
func NewRepositoryStore(cfg Config) (*RepositoryStore, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &RepositoryStore{client: client}, nil
}

// repoRecord is the repositories table row shape.
type repoRecord struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	MainBranch string `json:"main_branch"`
	Status     string `json:"status"`
	LastError  string `json:"last_error,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// ListPending returns every repository with status pending.
func (s *RepositoryStore) ListPending(ctx context.Context) ([]domain.Repository, error) {
	var records []repoRecord
	q := url.Values{"status": {eq(string(domain.StatusPending))}, "select": {"*"}}
	if err := s.client.do(ctx, http.MethodGet, tableRepositories, q, "", nil, &records); err != nil {
		return nil, fmt.Errorf("%w: list pending repositories: %v", domain.ErrSourceAccess, err)
	}

	repos := make([]domain.Repository, 0, len(records))
	for _, rec := range records {
		repos = append(repos, domain.Repository{
			ID:         rec.ID,
			Name:       rec.Name,
			URL:        rec.URL,
			MainBranch: rec.MainBranch,
			Status:     domain.RepoStatus(rec.Status),
			LastError:  rec.LastError,
		})
	}
	return repos, nil
}

// UpdateStatus moves a repository to the given status.
func (s *RepositoryStore) UpdateStatus(ctx context.Context, id int64, status domain.RepoStatus, message string) error {
	update := map[string]any{
		"status":     string(status),
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if status == domain.StatusError {
		update["last_error"] = message
	}

	q := url.Values{"id": {eq(fmt.Sprintf("%d", id))}}
	if err := s.client.do(ctx, http.MethodPatch, tableRepositories, q, "return=minimal", update, nil); err != nil {
		return fmt.Errorf("%w: update repository %d: %v", domain.ErrStorage, id, err)
	}
	return nil
}
