package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/ports/driven"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// Table names owned by the pipeline.
const (
	tableDocuments = "documents"
	tableRows      = "document_rows"
	tableMetadata  = "document_metadata"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore persists chunks, rows and metadata through PostgREST.
// There is no transaction spanning the calls; instead ReplaceFile issues
// them in a fixed order (delete everything, upsert metadata, insert rows,
// insert chunks) so a partial failure leaves at worst a gap that the next
// successful replace of the same file identity closes.
type DocumentStore struct {
	client *Client
}

// NewDocumentStore creates a PostgREST-backed document store.
func NewDocumentStore(cfg Config) (*DocumentStore, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &DocumentStore{client: client}, nil
}

// chunkRecord is the documents table row shape.
type chunkRecord struct {
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding"`
}

// metadataRecord is the document_metadata table row shape.
type metadataRecord struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	URL    string   `json:"url"`
	Schema []string `json:"schema,omitempty"`
}

// rowRecord is the document_rows table row shape.
type rowRecord struct {
	DatasetID string         `json:"dataset_id"`
	RowData   map[string]any `json:"row_data"`
}

// ReplaceFile replaces all derived records for art.FileID.
func (s *DocumentStore) ReplaceFile(ctx context.Context, art domain.FileArtifacts) error {
	if len(art.Embeddings) != len(art.Chunks) {
		return fmt.Errorf("%w: %s: %d chunks but %d embeddings", domain.ErrStorage, art.FileID, len(art.Chunks), len(art.Embeddings))
	}
	if err := s.DeleteFile(ctx, art.FileID); err != nil {
		return err
	}

	if err := s.upsertMetadata(ctx, art); err != nil {
		return fmt.Errorf("%w: upsert metadata for %s: %v", domain.ErrStorage, art.FileID, err)
	}

	if len(art.Rows) > 0 {
		records := make([]rowRecord, len(art.Rows))
		for i, row := range art.Rows {
			records[i] = rowRecord{DatasetID: art.FileID, RowData: row}
		}
		if err := s.client.do(ctx, http.MethodPost, tableRows, nil, "return=minimal", records, nil); err != nil {
			return fmt.Errorf("%w: insert rows for %s: %v", domain.ErrStorage, art.FileID, err)
		}
	}

	if len(art.Chunks) > 0 {
		records := make([]chunkRecord, len(art.Chunks))
		for i, chunk := range art.Chunks {
			records[i] = chunkRecord{
				Content:   chunk,
				Metadata:  art.ChunkMetadata(i),
				Embedding: art.Embeddings[i],
			}
		}
		if err := s.client.do(ctx, http.MethodPost, tableDocuments, nil, "return=minimal", records, nil); err != nil {
			return fmt.Errorf("%w: insert chunks for %s: %v", domain.ErrStorage, art.FileID, err)
		}
	}

	logger.Debug("supabase: replaced %s with %d chunks, %d rows", art.FileID, len(art.Chunks), len(art.Rows))
	return nil
}

// DeleteFile removes chunks, rows and metadata for the file identity, in
// that order. The chunk delete must succeed; row and metadata deletes are
// logged and tolerated so a missing table does not wedge the pipeline.
func (s *DocumentStore) DeleteFile(ctx context.Context, fileID string) error {
	q := url.Values{"metadata->>file_id": {eq(fileID)}}
	if err := s.client.do(ctx, http.MethodDelete, tableDocuments, q, "", nil, nil); err != nil {
		return fmt.Errorf("%w: delete chunks for %s: %v", domain.ErrStorage, fileID, err)
	}

	q = url.Values{"dataset_id": {eq(fileID)}}
	if err := s.client.do(ctx, http.MethodDelete, tableRows, q, "", nil, nil); err != nil {
		logger.Warn("supabase: delete rows for %s: %v", fileID, err)
	}

	q = url.Values{"id": {eq(fileID)}}
	if err := s.client.do(ctx, http.MethodDelete, tableMetadata, q, "", nil, nil); err != nil {
		logger.Warn("supabase: delete metadata for %s: %v", fileID, err)
	}
	return nil
}

// upsertMetadata checks for an existing record and updates or inserts.
func (s *DocumentStore) upsertMetadata(ctx context.Context, art domain.FileArtifacts) error {
	record := metadataRecord{
		ID:     art.FileID,
		Title:  art.Title,
		URL:    art.URL,
		Schema: art.Schema,
	}

	var existing []metadataRecord
	q := url.Values{"id": {eq(art.FileID)}, "select": {"id"}}
	if err := s.client.do(ctx, http.MethodGet, tableMetadata, q, "", nil, &existing); err != nil {
		return err
	}

	if len(existing) > 0 {
		q = url.Values{"id": {eq(art.FileID)}}
		return s.client.do(ctx, http.MethodPatch, tableMetadata, q, "return=minimal", record, nil)
	}
	return s.client.do(ctx, http.MethodPost, tableMetadata, nil, "return=minimal", record, nil)
}

// Close releases nothing; the HTTP client needs no explicit cleanup.
func (s *DocumentStore) Close() error { return nil }
