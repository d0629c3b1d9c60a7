// Package local watches a directory tree on the local filesystem. Change
// detection is a full walk comparing each file's modification time
// against its recorded known-files timestamp; a file absent from the
// known set is always reported, which covers files created while the
// pipeline was down.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/ports/driven"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/watchers/mimetype"
)

// Type is the watcher type identifier.
const Type = "local"

// Ensure Watcher implements the interfaces.
var (
	_ driven.Watcher         = (*Watcher)(nil)
	_ driven.KnownFilesAware = (*Watcher)(nil)
)

// Watcher polls a directory tree for created and modified files.
type Watcher struct {
	pipelineID       string
	root             string
	reconcileDeletes bool
	known            map[string]string
}

// New creates a filesystem watcher rooted at directory. When
// reconcileDeletes is set, files present in the known set but missing
// from disk are reported as trashed so their stored records get removed.
func New(pipelineID, directory string, reconcileDeletes bool) *Watcher {
	return &Watcher{
		pipelineID:       pipelineID,
		root:             directory,
		reconcileDeletes: reconcileDeletes,
		known:            make(map[string]string),
	}
}

// Type returns the watcher type identifier.
func (w *Watcher) Type() string { return Type }

// PipelineID returns the pipeline instance identity.
func (w *Watcher) PipelineID() string { return w.pipelineID }

// SetKnownFiles seeds change detection with the persisted file set.
func (w *Watcher) SetKnownFiles(known map[string]string) {
	w.known = make(map[string]string, len(known))
	for k, v := range known {
		w.known[k] = v
	}
}

// Validate checks that the watch root exists and is a directory.
func (w *Watcher) Validate(_ context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("%w: watch directory %s: %v", domain.ErrSourceAccess, w.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidConfig, w.root)
	}
	return nil
}

// ListChanges walks the tree and reports every file that is new or has
// a modification time newer than its known-files record. The watermark
// argument is deliberately ignored: a file whose processing failed keeps
// its old record and is reported again next cycle even after the
// watermark has moved past its modification time. Unreadable entries
// are logged and skipped so one bad file never aborts the walk.
func (w *Watcher) ListChanges(ctx context.Context, _ time.Time) ([]domain.ChangeEvent, error) {
	var events []domain.ChangeEvent
	present := make(map[string]bool)

	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			logger.Warn("local: skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("local: stat %s: %v", path, err)
			return nil
		}

		present[path] = true
		modTime := info.ModTime().UTC()
		if last, ok := w.known[path]; ok && !modifiedSince(modTime, last) {
			return nil
		}
		events = append(events, domain.ChangeEvent{
			FileID:      path,
			Name:        d.Name(),
			MIMEType:    mimetype.Detect(path),
			WebViewLink: "file://" + path,
			ModifiedAt:  modTime,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %v", domain.ErrSourceAccess, w.root, err)
	}

	if w.reconcileDeletes {
		for path := range w.known {
			if !present[path] {
				events = append(events, domain.ChangeEvent{
					FileID:      path,
					Name:        filepath.Base(path),
					WebViewLink: "file://" + path,
					Trashed:     true,
				})
			}
		}
	}
	return events, nil
}

// modifiedSince reports whether modTime is newer than the recorded
// timestamp. Records carry second precision, so modTime is truncated
// before comparing; an unparseable record counts as modified so the
// file is reprocessed rather than silently skipped.
func modifiedSince(modTime time.Time, recorded string) bool {
	ts, err := time.Parse(time.RFC3339, recorded)
	if err != nil {
		return true
	}
	return modTime.Truncate(time.Second).After(ts)
}

// FetchContent reads the file from disk.
func (w *Watcher) FetchContent(_ context.Context, ev domain.ChangeEvent) ([]byte, error) {
	data, err := os.ReadFile(ev.FileID)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrSourceAccess, ev.FileID, err)
	}
	return data, nil
}

// EndCycle has no per-cycle bookkeeping for the filesystem.
func (w *Watcher) EndCycle(_ context.Context) error { return nil }

// Close releases nothing.
func (w *Watcher) Close() error { return nil }
