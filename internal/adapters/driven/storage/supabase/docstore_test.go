package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

// fakeREST is a minimal in-memory PostgREST standing in for a Supabase
// project. It supports just the filters the store uses.
type fakeREST struct {
	mu       sync.Mutex
	chunks   []chunkRecord
	rows     []rowRecord
	metadata []metadataRecord

	// failOn, when set, makes the matching "METHOD table" call return 500.
	failOn string
	calls  []string
}

func (f *fakeREST) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		op := r.Method + " " + table
		f.calls = append(f.calls, op)

		if f.failOn == op {
			http.Error(w, `{"message":"induced failure"}`, http.StatusInternalServerError)
			return
		}

		q := r.URL.Query()
		switch {
		case r.Method == http.MethodDelete && table == tableDocuments:
			id := strings.TrimPrefix(q.Get("metadata->>file_id"), "eq.")
			kept := f.chunks[:0]
			for _, c := range f.chunks {
				if c.Metadata[domain.MetaFileID] != id {
					kept = append(kept, c)
				}
			}
			f.chunks = kept
			w.WriteHeader(http.StatusNoContent)

		case r.Method == http.MethodDelete && table == tableRows:
			id := strings.TrimPrefix(q.Get("dataset_id"), "eq.")
			kept := f.rows[:0]
			for _, row := range f.rows {
				if row.DatasetID != id {
					kept = append(kept, row)
				}
			}
			f.rows = kept
			w.WriteHeader(http.StatusNoContent)

		case r.Method == http.MethodDelete && table == tableMetadata:
			id := strings.TrimPrefix(q.Get("id"), "eq.")
			kept := f.metadata[:0]
			for _, m := range f.metadata {
				if m.ID != id {
					kept = append(kept, m)
				}
			}
			f.metadata = kept
			w.WriteHeader(http.StatusNoContent)

		case r.Method == http.MethodGet && table == tableMetadata:
			id := strings.TrimPrefix(q.Get("id"), "eq.")
			matches := []metadataRecord{}
			for _, m := range f.metadata {
				if m.ID == id {
					matches = append(matches, m)
				}
			}
			_ = json.NewEncoder(w).Encode(matches)

		case r.Method == http.MethodPost && table == tableMetadata:
			var rec metadataRecord
			_ = json.NewDecoder(r.Body).Decode(&rec)
			f.metadata = append(f.metadata, rec)
			w.WriteHeader(http.StatusCreated)

		case r.Method == http.MethodPatch && table == tableMetadata:
			id := strings.TrimPrefix(q.Get("id"), "eq.")
			var rec metadataRecord
			_ = json.NewDecoder(r.Body).Decode(&rec)
			for i, m := range f.metadata {
				if m.ID == id {
					f.metadata[i] = rec
				}
			}
			w.WriteHeader(http.StatusNoContent)

		case r.Method == http.MethodPost && table == tableRows:
			var recs []rowRecord
			_ = json.NewDecoder(r.Body).Decode(&recs)
			f.rows = append(f.rows, recs...)
			w.WriteHeader(http.StatusCreated)

		case r.Method == http.MethodPost && table == tableDocuments:
			var recs []chunkRecord
			_ = json.NewDecoder(r.Body).Decode(&recs)
			f.chunks = append(f.chunks, recs...)
			w.WriteHeader(http.StatusCreated)

		default:
			http.NotFound(w, r)
		}
	}
}

func (f *fakeREST) chunksFor(fileID string) []chunkRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chunkRecord
	for _, c := range f.chunks {
		if c.Metadata[domain.MetaFileID] == fileID {
			out = append(out, c)
		}
	}
	return out
}

func newTestStore(t *testing.T) (*DocumentStore, *fakeREST) {
	t.Helper()
	fake := &fakeREST{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	store, err := NewDocumentStore(Config{URL: srv.URL, ServiceKey: "service-key"})
	require.NoError(t, err)
	return store, fake
}

func artifacts(fileID string, chunks ...string) domain.FileArtifacts {
	embeddings := make([][]float32, len(chunks))
	for i := range chunks {
		embeddings[i] = []float32{float32(i)}
	}
	return domain.FileArtifacts{
		FileID:     fileID,
		Title:      "doc " + fileID,
		URL:        "https://example.com/" + fileID,
		MIMEType:   "text/plain",
		Chunks:     chunks,
		Embeddings: embeddings,
	}
}

func TestNewDocumentStoreRequiresConfig(t *testing.T) {
	_, err := NewDocumentStore(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestReplaceFile(t *testing.T) {
	store, fake := newTestStore(t)

	art := artifacts("file-1", "chunk a", "chunk b")
	require.NoError(t, store.ReplaceFile(context.Background(), art))

	chunks := fake.chunksFor("file-1")
	require.Len(t, chunks, 2)
	assert.Equal(t, "chunk a", chunks[0].Content)
	assert.Equal(t, float64(0), chunks[0].Metadata[domain.MetaChunkIndex])
	assert.Equal(t, float64(2), chunks[0].Metadata[domain.MetaTotalChunks])

	require.Len(t, fake.metadata, 1)
	assert.Equal(t, "doc file-1", fake.metadata[0].Title)
}

func TestReplaceFileIdempotent(t *testing.T) {
	store, fake := newTestStore(t)

	art := artifacts("file-1", "same content")
	require.NoError(t, store.ReplaceFile(context.Background(), art))
	require.NoError(t, store.ReplaceFile(context.Background(), art))

	assert.Len(t, fake.chunksFor("file-1"), 1)
	assert.Len(t, fake.metadata, 1)
}

func TestReplaceFileSupersedesOldChunks(t *testing.T) {
	store, fake := newTestStore(t)

	require.NoError(t, store.ReplaceFile(context.Background(), artifacts("file-1", "old 1", "old 2", "old 3")))
	require.NoError(t, store.ReplaceFile(context.Background(), artifacts("file-1", "new 1")))

	chunks := fake.chunksFor("file-1")
	require.Len(t, chunks, 1)
	assert.Equal(t, "new 1", chunks[0].Content)
}

func TestReplaceFileIsolatedPerFile(t *testing.T) {
	store, fake := newTestStore(t)

	require.NoError(t, store.ReplaceFile(context.Background(), artifacts("file-1", "one")))
	require.NoError(t, store.ReplaceFile(context.Background(), artifacts("file-2", "two")))
	require.NoError(t, store.ReplaceFile(context.Background(), artifacts("file-1", "one again")))

	assert.Len(t, fake.chunksFor("file-2"), 1)
}

func TestReplaceFileTabular(t *testing.T) {
	store, fake := newTestStore(t)

	art := artifacts("data.csv", "name,age\nalice,30")
	art.Schema = []string{"name", "age"}
	art.Rows = []map[string]any{{"name": "alice", "age": "30"}}
	require.NoError(t, store.ReplaceFile(context.Background(), art))

	require.Len(t, fake.rows, 1)
	assert.Equal(t, "data.csv", fake.rows[0].DatasetID)
	assert.Equal(t, []string{"name", "age"}, fake.metadata[0].Schema)
}

func TestReplaceFileEmbeddingMismatch(t *testing.T) {
	store, _ := newTestStore(t)

	art := artifacts("file-1", "a", "b")
	art.Embeddings = art.Embeddings[:1]
	assert.ErrorIs(t, store.ReplaceFile(context.Background(), art), domain.ErrStorage)
}

func TestDeleteFile(t *testing.T) {
	store, fake := newTestStore(t)

	art := artifacts("file-1", "c1", "c2", "c3", "c4", "c5")
	require.NoError(t, store.ReplaceFile(context.Background(), art))
	require.NoError(t, store.DeleteFile(context.Background(), "file-1"))

	assert.Empty(t, fake.chunksFor("file-1"))
	assert.Empty(t, fake.metadata)
	assert.Empty(t, fake.rows)
}

func TestReplaceFileConvergesAfterPartialFailure(t *testing.T) {
	store, fake := newTestStore(t)

	require.NoError(t, store.ReplaceFile(context.Background(), artifacts("file-1", "v1 chunk")))

	// Crash window: old chunks deleted, new inserts never happen.
	fake.mu.Lock()
	fake.failOn = "POST " + tableDocuments
	fake.mu.Unlock()
	err := store.ReplaceFile(context.Background(), artifacts("file-1", "v2 chunk"))
	require.ErrorIs(t, err, domain.ErrStorage)
	assert.Empty(t, fake.chunksFor("file-1"))

	// The next successful replace converges to a complete state.
	fake.mu.Lock()
	fake.failOn = ""
	fake.mu.Unlock()
	require.NoError(t, store.ReplaceFile(context.Background(), artifacts("file-1", "v3 chunk")))

	chunks := fake.chunksFor("file-1")
	require.Len(t, chunks, 1)
	assert.Equal(t, "v3 chunk", chunks[0].Content)
	require.Len(t, fake.metadata, 1)
}

func TestDeleteFileChunkFailureSurfaces(t *testing.T) {
	store, fake := newTestStore(t)
	fake.failOn = "DELETE " + tableDocuments

	assert.ErrorIs(t, store.DeleteFile(context.Background(), "file-1"), domain.ErrStorage)
}

func TestAuthHeadersSent(t *testing.T) {
	var apikey, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apikey = r.Header.Get("apikey")
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	store, err := NewDocumentStore(Config{URL: srv.URL, ServiceKey: "sk-123"})
	require.NoError(t, err)
	require.NoError(t, store.DeleteFile(context.Background(), "x"))

	assert.Equal(t, "sk-123", apikey)
	assert.Equal(t, "Bearer sk-123", auth)
}
