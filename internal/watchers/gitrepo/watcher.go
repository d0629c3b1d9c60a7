// Package gitrepo drives ingestion from a queue of git repositories
// shared with the web layer. Each poll cycle picks up every pending
// repository, shallow-clones or updates it, and emits one change event
// per supported source file. There is no incremental diffing: a queued
// repository is fully re-indexed on every analysis pass.
package gitrepo

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-github/v80/github"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/ports/driven"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// Type is the watcher type identifier.
const Type = "git"

// Ensure Watcher implements the interface.
var _ driven.Watcher = (*Watcher)(nil)

// Config holds settings for the repository watcher.
type Config struct {
	// PipelineID identifies the pipeline instance.
	PipelineID string

	// WorkDir is where repositories are cloned. Empty means a
	// subdirectory of the OS temp dir.
	WorkDir string

	// Token is an optional GitHub token used for default branch
	// resolution on repositories queued without one.
	Token string
}

// Watcher consumes the repository queue.
type Watcher struct {
	pipelineID string
	repos      driven.RepositoryStore
	cloner     cloner
	github     *github.Client

	// cloned maps repository IDs processed this cycle to their queue
	// records, so EndCycle can mark them cloned.
	cloned map[int64]domain.Repository
	// paths maps repository IDs to local working tree roots for
	// FetchContent.
	paths map[int64]string
}

// New creates a repository queue watcher.
func New(cfg Config, repos driven.RepositoryStore) (*Watcher, error) {
	if repos == nil {
		return nil, fmt.Errorf("%w: gitrepo: repository store is required", domain.ErrInvalidConfig)
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "rag-repos")
	}
	gc, err := newGitCloner(workDir)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(nil)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}

	return &Watcher{
		pipelineID: cfg.PipelineID,
		repos:      repos,
		cloner:     gc,
		github:     client,
		cloned:     make(map[int64]domain.Repository),
		paths:      make(map[int64]string),
	}, nil
}

// Type returns the watcher type identifier.
func (w *Watcher) Type() string { return Type }

// PipelineID returns the pipeline instance identity.
func (w *Watcher) PipelineID() string { return w.pipelineID }

// Validate checks that the queue is reachable.
func (w *Watcher) Validate(ctx context.Context) error {
	if _, err := w.repos.ListPending(ctx); err != nil {
		return err
	}
	return nil
}

// ListChanges fetches all pending repositories, clones each and emits
// one event per supported file. A repository that fails to clone gets a
// terminal error status and never blocks the others; the watermark is
// ignored because every analysis pass re-indexes the whole tree.
func (w *Watcher) ListChanges(ctx context.Context, _ time.Time) ([]domain.ChangeEvent, error) {
	pending, err := w.repos.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	logger.Info("gitrepo: %d pending repositories", len(pending))

	var events []domain.ChangeEvent
	for _, repo := range pending {
		evs, err := w.analyzeRepository(ctx, repo)
		if err != nil {
			logger.Error("gitrepo: %s: %v", repo.Name, err)
			if uerr := w.repos.UpdateStatus(ctx, repo.ID, domain.StatusError, err.Error()); uerr != nil {
				logger.Warn("gitrepo: mark %s failed: %v", repo.Name, uerr)
			}
			continue
		}
		events = append(events, evs...)
	}
	return events, nil
}

func (w *Watcher) analyzeRepository(ctx context.Context, repo domain.Repository) ([]domain.ChangeEvent, error) {
	if err := w.repos.UpdateStatus(ctx, repo.ID, domain.StatusCloning, ""); err != nil {
		return nil, err
	}

	branch := repo.MainBranch
	if branch == "" {
		branch = w.resolveDefaultBranch(ctx, repo.URL)
	}

	path, err := w.cloner.CloneOrUpdate(ctx, repo.URL, repo.Name, branch)
	if err != nil {
		return nil, err
	}

	if err := w.repos.UpdateStatus(ctx, repo.ID, domain.StatusAnalyzing, ""); err != nil {
		return nil, err
	}

	files, err := listRepoFiles(path)
	if err != nil {
		return nil, fmt.Errorf("%w: list files in %s: %v", domain.ErrSourceAccess, repo.Name, err)
	}
	logger.Info("gitrepo: %s: %d files to index", repo.Name, len(files))

	events := make([]domain.ChangeEvent, 0, len(files))
	now := time.Now().UTC()
	for _, rel := range files {
		events = append(events, domain.ChangeEvent{
			FileID:      fmt.Sprintf("repo_%d_%s", repo.ID, rel),
			Name:        repo.Name + "/" + rel,
			MIMEType:    "text/plain",
			WebViewLink: fmt.Sprintf("%s/blob/%s/%s", strings.TrimSuffix(repo.URL, "/"), branch, rel),
			ModifiedAt:  now,
			Meta: map[string]string{
				"path": filepath.Join(path, filepath.FromSlash(rel)),
			},
		})
	}

	w.cloned[repo.ID] = repo
	w.paths[repo.ID] = path
	return events, nil
}

// resolveDefaultBranch asks the GitHub API for the repository's default
// branch, falling back to main when the URL is not a GitHub repository
// or the lookup fails.
func (w *Watcher) resolveDefaultBranch(ctx context.Context, repoURL string) string {
	owner, name, ok := parseGitHubURL(repoURL)
	if !ok {
		return "main"
	}
	repo, _, err := w.github.Repositories.Get(ctx, owner, name)
	if err != nil {
		logger.Warn("gitrepo: resolve default branch for %s/%s: %v", owner, name, err)
		return "main"
	}
	if b := repo.GetDefaultBranch(); b != "" {
		return b
	}
	return "main"
}

// parseGitHubURL extracts owner and repository name from a github.com URL.
func parseGitHubURL(repoURL string) (owner, name string, ok bool) {
	u, err := url.Parse(repoURL)
	if err != nil || !strings.HasSuffix(u.Host, "github.com") {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

// FetchContent reads a file from the cloned working tree.
func (w *Watcher) FetchContent(_ context.Context, ev domain.ChangeEvent) ([]byte, error) {
	path := ev.Meta["path"]
	if path == "" {
		return nil, fmt.Errorf("%w: event %s has no local path", domain.ErrSourceAccess, ev.FileID)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrSourceAccess, path, err)
	}
	return data, nil
}

// EndCycle marks every repository processed this cycle as cloned.
func (w *Watcher) EndCycle(ctx context.Context) error {
	for id, repo := range w.cloned {
		if err := w.repos.UpdateStatus(ctx, id, domain.StatusCloned, ""); err != nil {
			logger.Warn("gitrepo: mark %s cloned: %v", repo.Name, err)
			continue
		}
		logger.Info("gitrepo: %s analyzed", repo.Name)
	}
	w.cloned = make(map[int64]domain.Repository)
	w.paths = make(map[int64]string)
	return nil
}

// Close releases nothing; clones are kept for incremental pulls.
func (w *Watcher) Close() error { return nil }
