package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

// ListPending returns every repository with status pending, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]domain.Repository, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url, main_branch, status, COALESCE(last_error, ''), updated_at
		FROM repositories WHERE status = $1 ORDER BY id`,
		string(domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("%w: list pending repositories: %v", domain.ErrSourceAccess, err)
	}
	defer rows.Close()

	var repos []domain.Repository
	for rows.Next() {
		var (
			r      domain.Repository
			status string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.URL, &r.MainBranch, &status, &r.LastError, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan repository: %v", domain.ErrSourceAccess, err)
		}
		r.Status = domain.RepoStatus(status)
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// UpdateStatus moves a repository to the given status.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.RepoStatus, message string) error {
	var (
		res sql.Result
		err error
	)
	if status == domain.StatusError {
		res, err = s.db.ExecContext(ctx, `
			UPDATE repositories SET status = $2, last_error = $3, updated_at = $4 WHERE id = $1`,
			id, string(status), message, time.Now().UTC())
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE repositories SET status = $2, last_error = NULL, updated_at = $3 WHERE id = $1`,
			id, string(status), time.Now().UTC())
	}
	if err != nil {
		return fmt.Errorf("%w: update repository %d: %v", domain.ErrStorage, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: repository %d", domain.ErrNotFound, id)
	}
	return nil
}
