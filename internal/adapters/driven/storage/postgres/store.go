// Package postgres implements the storage ports directly against
// Postgres with the pgvector extension. Unlike the PostgREST backend,
// each file replacement runs in a single transaction, so a crash can
// never leave partial records behind.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/ports/driven"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// Ensure the interfaces are implemented.
var (
	_ driven.DocumentStore   = (*Store)(nil)
	_ driven.StateStore      = (*Store)(nil)
	_ driven.RepositoryStore = (*Store)(nil)
)

// Config holds connection settings for the Postgres backend.
type Config struct {
	// DSN is the Postgres connection string.
	DSN string

	// Dimensions is the embedding vector size used when bootstrapping
	// the schema (default: 1536).
	Dimensions int
}

// Store serves all three storage ports from one connection pool: the
// document tables, the pipeline state table and the repository queue.
type Store struct {
	db *sql.DB
}

// NewStore opens the pool, pings the database and bootstraps the schema
// when the documents table is missing.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres: DSN is required", domain.ErrInvalidConfig)
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureBootstrapped(ctx, cfg.Dimensions); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return s, nil
}

func (s *Store) ensureBootstrapped(ctx context.Context, dimensions int) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'documents'
		)`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("schema check: %w", err)
	}
	if exists {
		return nil
	}

	sqlBytes, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return fmt.Errorf("read initdb.sql: %w", err)
	}
	ddl := strings.ReplaceAll(string(sqlBytes), "$DIMENSIONS", strconv.Itoa(dimensions))

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	logger.Info("postgres: schema bootstrapped with %d-dimensional vectors", dimensions)
	return nil
}

// ReplaceFile replaces all derived records for art.FileID in one
// transaction. A failure anywhere rolls the whole replacement back.
func (s *Store) ReplaceFile(ctx context.Context, art domain.FileArtifacts) error {
	if len(art.Embeddings) != len(art.Chunks) {
		return fmt.Errorf("%w: %s: %d chunks but %d embeddings", domain.ErrStorage, art.FileID, len(art.Chunks), len(art.Embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteFileTx(ctx, tx, art.FileID); err != nil {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrStorage, art.FileID, err)
	}

	var schemaJSON any
	if art.Schema != nil {
		data, err := json.Marshal(art.Schema)
		if err != nil {
			return fmt.Errorf("%w: marshal schema: %v", domain.ErrStorage, err)
		}
		schemaJSON = data
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_metadata (id, title, url, schema)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			schema = EXCLUDED.schema`,
		art.FileID, art.Title, art.URL, schemaJSON)
	if err != nil {
		return fmt.Errorf("%w: upsert metadata for %s: %v", domain.ErrStorage, art.FileID, err)
	}

	for _, row := range art.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("%w: marshal row: %v", domain.ErrStorage, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO document_rows (dataset_id, row_data) VALUES ($1, $2)`,
			art.FileID, data); err != nil {
			return fmt.Errorf("%w: insert row for %s: %v", domain.ErrStorage, art.FileID, err)
		}
	}

	for i, chunk := range art.Chunks {
		metadata, err := json.Marshal(art.ChunkMetadata(i))
		if err != nil {
			return fmt.Errorf("%w: marshal chunk metadata: %v", domain.ErrStorage, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (content, metadata, embedding) VALUES ($1, $2, $3)`,
			chunk, metadata, pgvector.NewVector(art.Embeddings[i])); err != nil {
			return fmt.Errorf("%w: insert chunk %d for %s: %v", domain.ErrStorage, i, art.FileID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit %s: %v", domain.ErrStorage, art.FileID, err)
	}
	logger.Debug("postgres: replaced %s with %d chunks, %d rows", art.FileID, len(art.Chunks), len(art.Rows))
	return nil
}

// DeleteFile removes every record for the file identity in one
// transaction.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteFileTx(ctx, tx, fileID); err != nil {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrStorage, fileID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit delete %s: %v", domain.ErrStorage, fileID, err)
	}
	return nil
}

func deleteFileTx(ctx context.Context, tx *sql.Tx, fileID string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE metadata->>'file_id' = $1`, fileID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_rows WHERE dataset_id = $1`, fileID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_metadata WHERE id = $1`, fileID); err != nil {
		return err
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
