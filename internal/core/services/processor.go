package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/chunker"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/ports/driven"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/extract"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// Processor turns one change event into stored artifacts: fetch,
// extract, chunk, embed, replace. Each file is isolated; a failure is
// reported to the caller and never affects other files in the cycle.
type Processor struct {
	embedder driven.EmbeddingService
	store    driven.DocumentStore

	contentChunker *chunker.Chunker
	codeChunker    *chunker.Chunker
	tabularTypes   []string
	retry          retryPolicy
}

// NewProcessor creates a processor with separate chunkers for prose and
// source code.
func NewProcessor(embedder driven.EmbeddingService, store driven.DocumentStore, content, code *chunker.Chunker) *Processor {
	return &Processor{
		embedder:       embedder,
		store:          store,
		contentChunker: content,
		codeChunker:    code,
		retry:          defaultRetry,
	}
}

// SetTabularTypes overrides the tabular-detection allow-list. An empty
// list keeps the extractor defaults.
func (p *Processor) SetTabularTypes(types []string) {
	p.tabularTypes = types
}

// Process handles one change event. It returns (stored, error): stored
// is true only when the file's records were fully replaced, which is
// what allows the caller to advance the known file set. A trashed event
// deletes the file's records and reports stored=true.
func (p *Processor) Process(ctx context.Context, w driven.Watcher, ev domain.ChangeEvent) (bool, error) {
	if ev.Trashed {
		if err := p.store.DeleteFile(ctx, ev.FileID); err != nil {
			return false, err
		}
		logger.Info("removed records for trashed file %s", ev.FileID)
		return true, nil
	}

	var raw []byte
	err := p.retry.do(ctx, "fetch "+ev.FileID, func() error {
		var ferr error
		raw, ferr = w.FetchContent(ctx, ev)
		return ferr
	})
	if err != nil {
		return false, err
	}

	text, err := extract.Text(raw, ev.MIMEType, ev.Name)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(text) == "" {
		logger.Debug("no extractable text in %s, skipping", ev.FileID)
		return false, nil
	}

	chunks := p.chunkerFor(w.Type(), ev.MIMEType).Chunk(text)
	if len(chunks) == 0 {
		return false, nil
	}

	var embeddings [][]float32
	err = p.retry.do(ctx, "embed "+ev.FileID, func() error {
		var eerr error
		embeddings, eerr = p.embedder.EmbedBatch(ctx, chunks)
		return eerr
	})
	if err != nil {
		return false, err
	}
	if len(embeddings) != len(chunks) {
		return false, fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrEmbedding, len(embeddings), len(chunks))
	}

	art := domain.FileArtifacts{
		FileID:     ev.FileID,
		Title:      ev.Name,
		URL:        ev.WebViewLink,
		MIMEType:   ev.MIMEType,
		Chunks:     chunks,
		Embeddings: embeddings,
	}
	if strings.HasPrefix(ev.MIMEType, "image") {
		art.Raw = raw
	}
	if extract.IsTabular(ev.MIMEType, p.tabularTypes) {
		art.Schema = extract.Schema(raw)
		art.Rows = extract.Rows(raw)
	}

	if err := p.store.ReplaceFile(ctx, art); err != nil {
		return false, err
	}
	logger.Info("stored %s: %d chunks, %d rows", ev.FileID, len(chunks), len(art.Rows))
	return true, nil
}

// chunkerFor picks the window settings: source code gets larger windows
// with overlap, prose the smaller default.
func (p *Processor) chunkerFor(watcherType, mimeType string) *chunker.Chunker {
	if watcherType == "git" {
		return p.codeChunker
	}
	if strings.HasPrefix(mimeType, "text/x-") {
		return p.codeChunker
	}
	return p.contentChunker
}
