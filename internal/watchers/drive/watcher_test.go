package drive

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	driveapi "google.golang.org/api/drive/v3"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

func TestBuildTimeQuery(t *testing.T) {
	since := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	q := buildTimeQuery(since)
	assert.Equal(t, "(modifiedTime > '2026-08-24T10:00:00Z' or createdTime > '2026-08-24T10:00:00Z')", q)
}

func TestBuildTimeQueryZeroTime(t *testing.T) {
	q := buildTimeQuery(time.Time{})
	assert.Contains(t, q, "0001-01-01T00:00:00Z")
}

func TestIsWorkspaceType(t *testing.T) {
	assert.True(t, isWorkspaceType(MimeTypeGoogleDoc))
	assert.True(t, isWorkspaceType(MimeTypeGoogleSheet))
	assert.True(t, isWorkspaceType(MimeTypeGoogleSlides))
	assert.False(t, isWorkspaceType(MimeTypeFolder))
	assert.False(t, isWorkspaceType("application/pdf"))
}

func TestFileToEventPlainFile(t *testing.T) {
	ev := fileToEvent(&driveapi.File{
		Id:           "f-1",
		Name:         "report.pdf",
		MimeType:     "application/pdf",
		WebViewLink:  "https://drive.google.com/file/d/f-1/view",
		ModifiedTime: "2026-08-24T09:30:00.000Z",
	})

	assert.Equal(t, "f-1", ev.FileID)
	assert.Equal(t, "application/pdf", ev.MIMEType)
	assert.Equal(t, "application/pdf", ev.Meta["sourceMimeType"])
	assert.Equal(t, time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC), ev.ModifiedAt)
	assert.False(t, ev.Trashed)
}

func TestFileToEventGoogleDoc(t *testing.T) {
	ev := fileToEvent(&driveapi.File{
		Id:           "doc-1",
		Name:         "Design notes",
		MimeType:     MimeTypeGoogleDoc,
		ModifiedTime: "2026-08-24T09:30:00Z",
	})

	// Export target becomes the processing MIME type, the original is
	// preserved for the export call.
	assert.Equal(t, "text/plain", ev.MIMEType)
	assert.Equal(t, MimeTypeGoogleDoc, ev.Meta["sourceMimeType"])
}

func TestFileToEventGoogleSheetExportsAsCSV(t *testing.T) {
	ev := fileToEvent(&driveapi.File{
		Id:           "sheet-1",
		Name:         "Budget",
		MimeType:     MimeTypeGoogleSheet,
		ModifiedTime: "2026-08-24T09:30:00Z",
	})
	assert.Equal(t, "text/csv", ev.MIMEType)
}

func TestFileToEventTrashed(t *testing.T) {
	ev := fileToEvent(&driveapi.File{
		Id:           "gone-1",
		Name:         "old.txt",
		MimeType:     "text/plain",
		ModifiedTime: "2026-08-24T09:30:00Z",
		Trashed:      true,
	})
	assert.True(t, ev.Trashed)
}

func TestFileToEventInvalidTimestampFallsBackToNow(t *testing.T) {
	before := time.Now().UTC()
	ev := fileToEvent(&driveapi.File{Id: "f", MimeType: "text/plain", ModifiedTime: "garbage"})
	require.False(t, ev.ModifiedAt.Before(before))
}

func TestShouldIncludeFiltersUnsupportedTypes(t *testing.T) {
	w := &Watcher{supported: DefaultSupportedMIMETypes}

	assert.True(t, w.shouldInclude(domain.ChangeEvent{MIMEType: "application/pdf"}))
	assert.True(t, w.shouldInclude(domain.ChangeEvent{MIMEType: "text/csv"}))
	assert.False(t, w.shouldInclude(domain.ChangeEvent{MIMEType: "video/mp4"}))
	assert.False(t, w.shouldInclude(domain.ChangeEvent{MIMEType: "application/zip"}))
	assert.False(t, w.shouldInclude(domain.ChangeEvent{MIMEType: "image/png"}))
}

func TestShouldIncludeTrashedBypassesFilter(t *testing.T) {
	w := &Watcher{supported: DefaultSupportedMIMETypes}

	// Stored records of a file outside the allow-list must still be
	// deleted when the file is trashed.
	assert.True(t, w.shouldInclude(domain.ChangeEvent{MIMEType: "video/mp4", Trashed: true}))
}

func TestShouldIncludeExportedWorkspaceDocs(t *testing.T) {
	w := &Watcher{supported: DefaultSupportedMIMETypes}

	// Workspace documents carry their export MIME type on the event, so
	// the default list admits them.
	ev := fileToEvent(&driveapi.File{
		Id:           "doc-1",
		MimeType:     MimeTypeGoogleDoc,
		ModifiedTime: "2026-08-24T09:30:00Z",
	})
	assert.True(t, w.shouldInclude(ev))

	sheet := fileToEvent(&driveapi.File{
		Id:           "sheet-1",
		MimeType:     MimeTypeGoogleSheet,
		ModifiedTime: "2026-08-24T09:30:00Z",
	})
	assert.True(t, w.shouldInclude(sheet))
}

func TestSupportedMIMEWildcards(t *testing.T) {
	allowed := []string{"text/*", "application/pdf"}

	assert.True(t, supportedMIME("text/markdown", allowed))
	assert.True(t, supportedMIME("text/csv", allowed))
	assert.True(t, supportedMIME("application/pdf", allowed))
	assert.False(t, supportedMIME("application/json", allowed))
	assert.False(t, supportedMIME("video/mp4", allowed))
}

func TestReadCappedRejectsOversizeContent(t *testing.T) {
	big := strings.NewReader(strings.Repeat("a", MaxExportSize+1))

	_, err := readCapped(big, "f-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestReadCappedReturnsContentAtOrBelowLimit(t *testing.T) {
	data, err := readCapped(strings.NewReader("hello"), "f-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	exact := strings.Repeat("b", MaxExportSize)
	data, err = readCapped(strings.NewReader(exact), "f-2")
	require.NoError(t, err)
	assert.Len(t, data, MaxExportSize)
}

func TestRateLimiterBackoff(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 100, BurstSize: 1})
	r.RecordRateLimitError(1)

	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()
	assert.True(t, retryAt.After(time.Now()))
}

func TestRateLimiterDefaultBackoff(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{})
	r.RecordRateLimitError(0)

	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()
	// Default backoff is 60 seconds.
	assert.True(t, retryAt.After(time.Now().Add(50*time.Second)))
}
