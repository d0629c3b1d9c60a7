// Package drive watches a Google Drive account or folder subtree for
// file changes via the Drive v3 API. Google Workspace documents are
// exported to text formats; everything else is downloaded as is.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/ports/driven"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// Type is the watcher type identifier.
const Type = "google_drive"

// Google Workspace MIME types that require export.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
)

// exportFormats maps Workspace types to their export MIME type.
var exportFormats = map[string]string{
	MimeTypeGoogleDoc:    "text/plain",
	MimeTypeGoogleSheet:  "text/csv",
	MimeTypeGoogleSlides: "text/plain",
}

// MaxExportSize caps downloaded and exported content (5MB).
const MaxExportSize = 5 * 1024 * 1024

// DefaultSupportedMIMETypes is the allow-list applied when none is
// configured. Matching runs against the post-export MIME type, so
// Workspace documents pass via their text/plain or text/csv export
// format.
var DefaultSupportedMIMETypes = []string{
	"application/pdf",
	"text/plain",
	"text/html",
	"text/csv",
}

const (
	pageSize   = 100
	listFields = "nextPageToken, files(id, name, mimeType, webViewLink, modifiedTime, trashed)"
)

// Ensure Watcher implements the interface.
var _ driven.Watcher = (*Watcher)(nil)

// Config holds settings for the Drive watcher.
type Config struct {
	// PipelineID identifies the pipeline instance.
	PipelineID string

	// FolderID restricts watching to one folder subtree. Empty watches
	// the whole Drive.
	FolderID string

	// CredentialsPath points at an OAuth client credentials JSON file.
	CredentialsPath string

	// TokenPath points at the cached OAuth token file.
	TokenPath string

	// SupportedMIMETypes filters files before download. Entries are
	// exact MIME types or major-type wildcards like "text/*". Empty
	// falls back to DefaultSupportedMIMETypes.
	SupportedMIMETypes []string

	// RateLimit overrides the default request rate.
	RateLimit RateLimitConfig
}

// Watcher polls the Drive API for created, modified and trashed files.
type Watcher struct {
	pipelineID string
	folderID   string
	supported  []string
	svc        *driveapi.Service
	limiter    *RateLimiter
}

// New creates a Drive watcher, resolving credentials and building the
// API client.
func New(ctx context.Context, cfg Config) (*Watcher, error) {
	ts, err := tokenSource(ctx, cfg.CredentialsPath, cfg.TokenPath)
	if err != nil {
		return nil, err
	}
	svc, err := driveapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("%w: create drive service: %v", domain.ErrSourceAccess, err)
	}
	supported := cfg.SupportedMIMETypes
	if len(supported) == 0 {
		supported = DefaultSupportedMIMETypes
	}
	return &Watcher{
		pipelineID: cfg.PipelineID,
		folderID:   cfg.FolderID,
		supported:  supported,
		svc:        svc,
		limiter:    NewRateLimiter(cfg.RateLimit),
	}, nil
}

// Type returns the watcher type identifier.
func (w *Watcher) Type() string { return Type }

// PipelineID returns the pipeline instance identity.
func (w *Watcher) PipelineID() string { return w.pipelineID }

// Validate makes a lightweight About call to confirm credentials work.
func (w *Watcher) Validate(ctx context.Context) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := w.svc.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		return w.wrapAPIError("validate credentials", err)
	}
	return nil
}

// ListChanges returns every supported file created or modified after
// since, including trashed files so their stored records get deleted.
// Files outside the MIME allow-list are dropped before any download
// happens. When a folder ID is configured, the folder tree is resolved
// first and only files inside it are reported.
func (w *Watcher) ListChanges(ctx context.Context, since time.Time) ([]domain.ChangeEvent, error) {
	timeClause := buildTimeQuery(since)

	var queries []string
	if w.folderID == "" {
		queries = []string{timeClause}
	} else {
		folders, err := w.resolveFolderTree(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range folders {
			queries = append(queries, fmt.Sprintf("'%s' in parents and %s", id, timeClause))
		}
	}

	var events []domain.ChangeEvent
	seen := make(map[string]bool)
	for _, q := range queries {
		files, err := w.listFiles(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.MimeType == MimeTypeFolder || seen[f.Id] {
				continue
			}
			seen[f.Id] = true
			ev := fileToEvent(f)
			if !w.shouldInclude(ev) {
				logger.Debug("drive: skipping %s (%s), unsupported type %s", f.Name, f.Id, ev.MIMEType)
				continue
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

// shouldInclude applies the MIME allow-list. Trashed files always pass
// so stored records of a file that later became unsupported still get
// deleted.
func (w *Watcher) shouldInclude(ev domain.ChangeEvent) bool {
	if ev.Trashed {
		return true
	}
	return supportedMIME(ev.MIMEType, w.supported)
}

// supportedMIME matches exact entries and major-type wildcards such as
// "text/*".
func supportedMIME(mimeType string, allowed []string) bool {
	for _, t := range allowed {
		if mimeType == t {
			return true
		}
		if strings.HasSuffix(t, "/*") && strings.HasPrefix(mimeType, strings.TrimSuffix(t, "*")) {
			return true
		}
	}
	return false
}

// fileToEvent converts a Drive file to a change event. Workspace files
// report their export MIME type; the original type is kept in Meta for
// the export call.
func fileToEvent(f *driveapi.File) domain.ChangeEvent {
	mimeType := f.MimeType
	if exported, ok := exportFormats[f.MimeType]; ok {
		mimeType = exported
	}
	modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
	if err != nil {
		modified = time.Now().UTC()
	}
	return domain.ChangeEvent{
		FileID:      f.Id,
		Name:        f.Name,
		MIMEType:    mimeType,
		WebViewLink: f.WebViewLink,
		ModifiedAt:  modified.UTC(),
		Trashed:     f.Trashed,
		Meta:        map[string]string{"sourceMimeType": f.MimeType},
	}
}

// resolveFolderTree returns the configured folder and every folder
// nested below it.
func (w *Watcher) resolveFolderTree(ctx context.Context) ([]string, error) {
	all := []string{w.folderID}
	queue := []string{w.folderID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		q := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", id, MimeTypeFolder)
		folders, err := w.listFiles(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, f := range folders {
			all = append(all, f.Id)
			queue = append(queue, f.Id)
		}
	}
	return all, nil
}

// listFiles pages through one files.list query.
func (w *Watcher) listFiles(ctx context.Context, query string) ([]*driveapi.File, error) {
	var files []*driveapi.File
	pageToken := ""
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		call := w.svc.Files.List().
			Q(query).
			PageSize(pageSize).
			Fields(googleapi.Field(listFields)).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, w.wrapAPIError("list files", err)
		}
		files = append(files, res.Files...)
		if res.NextPageToken == "" {
			return files, nil
		}
		pageToken = res.NextPageToken
	}
}

// FetchContent downloads a file, exporting Workspace documents to their
// text format.
func (w *Watcher) FetchContent(ctx context.Context, ev domain.ChangeEvent) ([]byte, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	sourceMime := ev.Meta["sourceMimeType"]
	if exportMime, ok := exportFormats[sourceMime]; ok {
		resp, err := w.svc.Files.Export(ev.FileID, exportMime).Context(ctx).Download()
		if err != nil {
			return nil, w.wrapAPIError("export "+ev.FileID, err)
		}
		defer resp.Body.Close()
		return readCapped(resp.Body, ev.FileID)
	}

	resp, err := w.svc.Files.Get(ev.FileID).Context(ctx).Download()
	if err != nil {
		return nil, w.wrapAPIError("download "+ev.FileID, err)
	}
	defer resp.Body.Close()
	return readCapped(resp.Body, ev.FileID)
}

// readCapped reads at most MaxExportSize bytes and rejects anything
// larger instead of silently indexing a truncated prefix. The error is
// an extraction error, not a source error, so the file is skipped this
// cycle rather than retried in place.
func readCapped(r io.Reader, fileID string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxExportSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrSourceAccess, fileID, err)
	}
	if len(data) > MaxExportSize {
		return nil, fmt.Errorf("%w: %s exceeds the %d byte content limit", domain.ErrExtraction, fileID, MaxExportSize)
	}
	return data, nil
}

// wrapAPIError classifies a Drive API error, recording backoff on 429.
func (w *Watcher) wrapAPIError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == 429 {
			retryAfter := 0
			if ra := gerr.Header.Get("Retry-After"); ra != "" {
				_, _ = fmt.Sscanf(ra, "%d", &retryAfter)
			}
			w.limiter.RecordRateLimitError(retryAfter)
			logger.Warn("drive: rate limited, backing off")
		}
		return fmt.Errorf("%w: %s: drive API status %d: %s", domain.ErrSourceAccess, op, gerr.Code, gerr.Message)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrSourceAccess, op, err)
}

// buildTimeQuery builds the modified-or-created-after clause.
func buildTimeQuery(since time.Time) string {
	cutoff := since.UTC().Format(time.RFC3339)
	return fmt.Sprintf("(modifiedTime > '%s' or createdTime > '%s')", cutoff, cutoff)
}

// EndCycle has no per-cycle bookkeeping for Drive.
func (w *Watcher) EndCycle(_ context.Context) error { return nil }

// Close releases nothing; the API client has no close semantics.
func (w *Watcher) Close() error { return nil }

// isWorkspaceType reports whether the MIME type is an exportable Google
// Workspace document.
func isWorkspaceType(mimeType string) bool {
	_, ok := exportFormats[mimeType]
	return ok
}
