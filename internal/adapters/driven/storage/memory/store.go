// Package memory provides in-memory implementations of the storage ports.
// They back unit tests and offer a dependency-free way to exercise the
// pipeline end to end.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/ports/driven"
)

// Ensure the interfaces are implemented.
var (
	_ driven.DocumentStore   = (*DocumentStore)(nil)
	_ driven.StateStore      = (*StateStore)(nil)
	_ driven.RepositoryStore = (*RepositoryStore)(nil)
)

// StoredFile is the materialised record set for one file identity.
type StoredFile struct {
	Metadata domain.DocumentMetadata
	Chunks   []domain.DocumentChunk
	Rows     []domain.DocumentRow
}

// DocumentStore keeps derived records in a map keyed by file identity.
type DocumentStore struct {
	mu    sync.RWMutex
	files map[string]StoredFile

	// ReplaceErr and DeleteErr, when set, are returned by the
	// corresponding operations. Used to simulate backend failures.
	ReplaceErr error
	DeleteErr  error
}

// NewDocumentStore creates an empty in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{files: make(map[string]StoredFile)}
}

// ReplaceFile swaps all records for the file identity in one step.
func (s *DocumentStore) ReplaceFile(_ context.Context, art domain.FileArtifacts) error {
	if s.ReplaceErr != nil {
		return s.ReplaceErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := StoredFile{
		Metadata: domain.DocumentMetadata{
			FileID: art.FileID,
			Title:  art.Title,
			URL:    art.URL,
			Schema: art.Schema,
		},
	}
	for i, chunk := range art.Chunks {
		dc := domain.DocumentChunk{
			Content:  chunk,
			Metadata: art.ChunkMetadata(i),
		}
		if i < len(art.Embeddings) {
			dc.Embedding = art.Embeddings[i]
		}
		stored.Chunks = append(stored.Chunks, dc)
	}
	for _, row := range art.Rows {
		stored.Rows = append(stored.Rows, domain.DocumentRow{
			DatasetID: art.FileID,
			RowData:   row,
		})
	}
	s.files[art.FileID] = stored
	return nil
}

// DeleteFile removes every record for the file identity.
func (s *DocumentStore) DeleteFile(_ context.Context, fileID string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, fileID)
	return nil
}

// Get returns the stored records for a file identity.
func (s *DocumentStore) Get(fileID string) (StoredFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[fileID]
	return f, ok
}

// FileIDs returns the stored file identities in sorted order.
func (s *DocumentStore) FileIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close releases nothing.
func (s *DocumentStore) Close() error { return nil }

// StateStore keeps pipeline state in memory, keyed by pipeline ID.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]domain.PipelineState

	LoadErr error
	SaveErr error
}

// NewStateStore creates an empty in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]domain.PipelineState)}
}

// Load returns a copy of the stored state, or a zero state when none exists.
func (s *StateStore) Load(_ context.Context, pipelineID string) (*domain.PipelineState, error) {
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[pipelineID]
	if !ok {
		return domain.NewPipelineState(pipelineID, ""), nil
	}
	cp := st
	cp.KnownFiles = make(map[string]string, len(st.KnownFiles))
	for k, v := range st.KnownFiles {
		cp.KnownFiles[k] = v
	}
	return &cp, nil
}

// Save stores a copy of the state.
func (s *StateStore) Save(_ context.Context, state *domain.PipelineState) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *state
	cp.LastCheckTime = state.LastCheckTime.UTC()
	cp.KnownFiles = make(map[string]string, len(state.KnownFiles))
	for k, v := range state.KnownFiles {
		cp.KnownFiles[k] = v
	}
	s.states[state.PipelineID] = cp
	return nil
}

// Close releases nothing.
func (s *StateStore) Close() error { return nil }

// RepositoryStore keeps the repository queue in memory.
type RepositoryStore struct {
	mu    sync.RWMutex
	repos map[int64]domain.Repository
}

// NewRepositoryStore creates an empty in-memory repository store.
func NewRepositoryStore() *RepositoryStore {
	return &RepositoryStore{repos: make(map[int64]domain.Repository)}
}

// Add inserts a repository record, standing in for the web layer.
func (s *RepositoryStore) Add(repo domain.Repository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[repo.ID] = repo
}

// Get returns a repository by ID.
func (s *RepositoryStore) Get(id int64) (domain.Repository, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.repos[id]
	return r, ok
}

// ListPending returns repositories with status pending, ordered by ID.
func (s *RepositoryStore) ListPending(_ context.Context) ([]domain.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []domain.Repository
	for _, r := range s.repos {
		if r.Status == domain.StatusPending {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

// UpdateStatus advances a repository's status.
func (s *RepositoryStore) UpdateStatus(_ context.Context, id int64, status domain.RepoStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.repos[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	if status == domain.StatusError {
		r.LastError = message
	} else {
		r.LastError = ""
	}
	s.repos[id] = r
	return nil
}
