package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func eventByID(events []domain.ChangeEvent, fileID string) (domain.ChangeEvent, bool) {
	for _, ev := range events {
		if ev.FileID == fileID {
			return ev, true
		}
	}
	return domain.ChangeEvent{}, false
}

func TestValidate(t *testing.T) {
	t.Run("existing directory", func(t *testing.T) {
		w := New("pipe-1", t.TempDir(), false)
		assert.NoError(t, w.Validate(context.Background()))
	})

	t.Run("missing directory", func(t *testing.T) {
		w := New("pipe-1", "/nonexistent/path", false)
		assert.ErrorIs(t, w.Validate(context.Background()), domain.ErrSourceAccess)
	})

	t.Run("file instead of directory", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "f.txt", "x")
		w := New("pipe-1", path, false)
		assert.ErrorIs(t, w.Validate(context.Background()), domain.ErrInvalidConfig)
	})
}

func TestListChangesFirstRunReportsEverything(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "alpha")
	b := writeFile(t, dir, "nested/b.md", "beta")

	w := New("pipe-1", dir, false)
	events, err := w.ListChanges(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)

	evA, ok := eventByID(events, a)
	require.True(t, ok)
	assert.Equal(t, "a.txt", evA.Name)
	assert.Equal(t, "text/plain", evA.MIMEType)
	assert.Equal(t, "file://"+a, evA.WebViewLink)
	assert.False(t, evA.Trashed)

	evB, ok := eventByID(events, b)
	require.True(t, ok)
	assert.Equal(t, "text/markdown", evB.MIMEType)
}

func TestListChangesSkipsKnownUnmodifiedFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "alpha")
	info, err := os.Stat(path)
	require.NoError(t, err)

	w := New("pipe-1", dir, false)
	w.SetKnownFiles(map[string]string{path: info.ModTime().UTC().Format(time.RFC3339)})

	events, err := w.ListChanges(context.Background(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestListChangesReportsModifiedKnownFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "alpha")

	w := New("pipe-1", dir, false)
	w.SetKnownFiles(map[string]string{path: "2026-01-01T00:00:00Z"})

	events, err := w.ListChanges(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, path, events[0].FileID)
}

func TestListChangesReportsStaleKnownFilesDespiteWatermark(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "alpha")

	w := New("pipe-1", dir, false)
	// The recorded timestamp predates the file's mtime, meaning the last
	// processing attempt never completed. A watermark already past the
	// mtime must not hide the file from the next cycle.
	w.SetKnownFiles(map[string]string{path: "2026-01-01T00:00:00Z"})

	events, err := w.ListChanges(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, path, events[0].FileID)
}

func TestListChangesReportsKnownFilesWithBadTimestamps(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "alpha")

	w := New("pipe-1", dir, false)
	w.SetKnownFiles(map[string]string{path: "not-a-timestamp"})

	events, err := w.ListChanges(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestListChangesReportsUnknownFilesRegardlessOfWatermark(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "new.txt", "fresh")

	w := New("pipe-1", dir, false)

	// Watermark in the future; the file is still reported because it is
	// not in the known set.
	events, err := w.ListChanges(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, path, events[0].FileID)
}

func TestListChangesReconcilesDeletes(t *testing.T) {
	dir := t.TempDir()
	gone := filepath.Join(dir, "gone.txt")

	w := New("pipe-1", dir, true)
	w.SetKnownFiles(map[string]string{gone: "2026-01-01T00:00:00Z"})

	events, err := w.ListChanges(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, gone, events[0].FileID)
	assert.True(t, events[0].Trashed)
}

func TestListChangesNoDeleteReconciliationByDefault(t *testing.T) {
	dir := t.TempDir()
	gone := filepath.Join(dir, "gone.txt")

	w := New("pipe-1", dir, false)
	w.SetKnownFiles(map[string]string{gone: "2026-01-01T00:00:00Z"})

	events, err := w.ListChanges(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFetchContent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "file body")

	w := New("pipe-1", dir, false)
	data, err := w.FetchContent(context.Background(), domain.ChangeEvent{FileID: path})
	require.NoError(t, err)
	assert.Equal(t, "file body", string(data))
}

func TestFetchContentMissingFile(t *testing.T) {
	w := New("pipe-1", t.TempDir(), false)
	_, err := w.FetchContent(context.Background(), domain.ChangeEvent{FileID: "/nope"})
	assert.ErrorIs(t, err, domain.ErrSourceAccess)
}
