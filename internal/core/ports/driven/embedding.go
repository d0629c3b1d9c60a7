package driven

import "context"

// EmbeddingService turns text chunks into vectors via an external provider.
type EmbeddingService interface {
	// EmbedBatch returns one vector per input text, in input order. All
	// chunks of one file are submitted together; implementations may
	// sub-batch internally but must preserve global order. A failure
	// means no vectors at all; callers never persist a partial set.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
