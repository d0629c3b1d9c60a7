package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

// fakeStateREST emulates the rag_pipeline_state table.
type fakeStateREST struct {
	mu      sync.Mutex
	records map[string]stateRecord
	fail    bool
}

func (f *fakeStateREST) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.fail {
			http.Error(w, `{"message":"down"}`, http.StatusServiceUnavailable)
			return
		}
		if !strings.HasSuffix(r.URL.Path, "/"+tableState) {
			http.NotFound(w, r)
			return
		}

		id := strings.TrimPrefix(r.URL.Query().Get("pipeline_id"), "eq.")
		switch r.Method {
		case http.MethodGet:
			matches := []stateRecord{}
			if rec, ok := f.records[id]; ok {
				matches = append(matches, rec)
			}
			_ = json.NewEncoder(w).Encode(matches)
		case http.MethodPost:
			var rec stateRecord
			_ = json.NewDecoder(r.Body).Decode(&rec)
			f.records[rec.PipelineID] = rec
			w.WriteHeader(http.StatusCreated)
		case http.MethodPatch:
			var rec stateRecord
			_ = json.NewDecoder(r.Body).Decode(&rec)
			f.records[id] = rec
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}
}

func newStateTestStore(t *testing.T) (*StateStore, *fakeStateREST) {
	t.Helper()
	fake := &fakeStateREST{records: make(map[string]stateRecord)}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	store, err := NewStateStore(Config{URL: srv.URL, ServiceKey: "key"})
	require.NoError(t, err)
	return store, fake
}

func TestStateLoadMissingRecord(t *testing.T) {
	store, _ := newStateTestStore(t)

	state, err := store.Load(context.Background(), "pipe-1")
	require.NoError(t, err)
	assert.Equal(t, "pipe-1", state.PipelineID)
	assert.True(t, state.LastCheckTime.IsZero())
	assert.Empty(t, state.KnownFiles)
}

func TestStateSaveAndLoad(t *testing.T) {
	store, _ := newStateTestStore(t)
	ctx := context.Background()

	checked := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	state := domain.NewPipelineState("pipe-1", "local")
	state.LastCheckTime = checked
	state.KnownFiles = map[string]string{"/data/a.txt": "2026-08-24T10:00:00Z"}
	require.NoError(t, store.Save(ctx, state))

	loaded, err := store.Load(ctx, "pipe-1")
	require.NoError(t, err)
	assert.Equal(t, "local", loaded.PipelineType)
	assert.Equal(t, checked, loaded.LastCheckTime)
	assert.Equal(t, state.KnownFiles, loaded.KnownFiles)
}

func TestStateSaveUpdatesExisting(t *testing.T) {
	store, fake := newStateTestStore(t)
	ctx := context.Background()

	state := domain.NewPipelineState("pipe-1", "local")
	require.NoError(t, store.Save(ctx, state))
	state.LastCheckTime = time.Now().UTC()
	require.NoError(t, store.Save(ctx, state))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.records, 1)
}

func TestStateLoadDegradesOnBackendFailure(t *testing.T) {
	store, fake := newStateTestStore(t)
	fake.fail = true

	state, err := store.Load(context.Background(), "pipe-1")
	require.NoError(t, err)
	assert.True(t, state.LastCheckTime.IsZero())
}

func TestStateSaveFailureSurfaces(t *testing.T) {
	store, fake := newStateTestStore(t)
	fake.fail = true

	err := store.Save(context.Background(), domain.NewPipelineState("pipe-1", "local"))
	assert.ErrorIs(t, err, domain.ErrStateStore)
}

func TestStateLoadNaiveTimestampNormalisedToUTC(t *testing.T) {
	store, fake := newStateTestStore(t)

	fake.mu.Lock()
	fake.records["pipe-1"] = stateRecord{
		PipelineID:    "pipe-1",
		PipelineType:  "local",
		LastCheckTime: "2026-08-24T10:30:00+02:00",
	}
	fake.mu.Unlock()

	state, err := store.Load(context.Background(), "pipe-1")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, state.LastCheckTime.Location())
	assert.Equal(t, time.Date(2026, 8, 24, 8, 30, 0, 0, time.UTC), state.LastCheckTime)
}
