package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// cloner materialises a repository working tree on disk.
type cloner interface {
	CloneOrUpdate(ctx context.Context, repoURL, repoName, branch string) (string, error)
}

// gitCloner shallow-clones repositories under a base directory and pulls
// when the clone already exists.
type gitCloner struct {
	baseDir string
}

func newGitCloner(baseDir string) (*gitCloner, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve clone directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create clone directory: %w", err)
	}
	return &gitCloner{baseDir: abs}, nil
}

// CloneOrUpdate returns the local working tree path for the repository.
func (c *gitCloner) CloneOrUpdate(ctx context.Context, repoURL, repoName, branch string) (string, error) {
	target := filepath.Join(c.baseDir, repoName)

	if _, err := os.Stat(target); err == nil {
		logger.Debug("gitrepo: updating existing clone of %s", repoName)
		repo, err := git.PlainOpen(target)
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", domain.ErrSourceAccess, repoName, err)
		}
		wt, err := repo.Worktree()
		if err != nil {
			return "", fmt.Errorf("%w: worktree %s: %v", domain.ErrSourceAccess, repoName, err)
		}
		err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return "", fmt.Errorf("%w: pull %s: %v", domain.ErrSourceAccess, repoName, err)
		}
		return target, nil
	}

	logger.Debug("gitrepo: cloning %s into %s", repoURL, target)
	_, err := git.PlainCloneContext(ctx, target, false, &git.CloneOptions{
		URL:           repoURL,
		Depth:         1,
		SingleBranch:  true,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
	})
	if err != nil {
		// A half-written clone would make the next attempt fail on open.
		_ = os.RemoveAll(target)
		return "", fmt.Errorf("%w: clone %s: %v", domain.ErrSourceAccess, repoURL, err)
	}
	return target, nil
}
