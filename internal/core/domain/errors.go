package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates malformed or contradictory configuration.
	// Raised at construction time, never mid-cycle.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSourceAccess indicates a source could not be reached or listed
	// (auth failure, network error). Retried with backoff by the
	// orchestrator; never terminates the poll loop.
	ErrSourceAccess = errors.New("source access failed")

	// ErrExtraction indicates a file's content could not be converted to
	// text. The file is skipped for this cycle and retried on the next.
	ErrExtraction = errors.New("text extraction failed")

	// ErrEmbedding indicates the embedding provider call failed.
	// A file whose chunks cannot be embedded is never partially stored.
	ErrEmbedding = errors.New("embedding provider failed")

	// ErrStorage indicates a document store write failed. Isolated per
	// file; on the relational backend this is a transaction rollback.
	ErrStorage = errors.New("storage operation failed")

	// ErrStateStore indicates pipeline state could not be read or written.
	// Never blocks processing; only risks redundant re-scanning.
	ErrStateStore = errors.New("state store operation failed")
)
