package domain

import (
	"encoding/base64"
	"strings"
)

// Chunk metadata keys shared by both storage backends. The retrieval layer
// filters on these, so the names are part of the persisted schema.
const (
	MetaFileID       = "file_id"
	MetaFileURL      = "file_url"
	MetaFileTitle    = "file_title"
	MetaMIMEType     = "mime_type"
	MetaChunkIndex   = "chunk_index"
	MetaTotalChunks  = "total_chunks"
	MetaFileContents = "file_contents"
)

// FileArtifacts is everything derived from one source file, handed to the
// document store as a unit. ReplaceFile persists it atomically (relational
// backend) or in the fixed self-healing order (HTTP backend).
type FileArtifacts struct {
	// FileID is the stable file identity all derived records are keyed by.
	FileID string

	// Title is the display name stored in document metadata.
	Title string

	// URL is the source link stored in document metadata.
	URL string

	// MIMEType is the declared content type of the source file.
	MIMEType string

	// Chunks is the ordered chunked text. Chunks[i] is stored with
	// chunk_index i.
	Chunks []string

	// Embeddings holds one vector per chunk, same order as Chunks.
	Embeddings [][]float32

	// Raw is the original file content. Only set for image types, where
	// the bytes are base64-embedded into the single chunk's metadata so
	// the asset stays retrievable.
	Raw []byte

	// Schema is the ordered column names of a tabular file; nil otherwise.
	Schema []string

	// Rows holds one column→value map per tabular data row; nil otherwise.
	Rows []map[string]any
}

// ChunkMetadata builds the metadata map persisted with chunk i. Image
// files additionally carry their base64-encoded bytes under file_contents
// so the original asset stays retrievable from the vector store.
func (a *FileArtifacts) ChunkMetadata(i int) map[string]any {
	md := map[string]any{
		MetaFileID:      a.FileID,
		MetaFileURL:     a.URL,
		MetaFileTitle:   a.Title,
		MetaMIMEType:    a.MIMEType,
		MetaChunkIndex:  i,
		MetaTotalChunks: len(a.Chunks),
	}
	if len(a.Raw) > 0 && strings.HasPrefix(a.MIMEType, "image") {
		md[MetaFileContents] = base64.StdEncoding.EncodeToString(a.Raw)
	}
	return md
}

// DocumentChunk is one stored chunk as seen at the retrieval boundary.
type DocumentChunk struct {
	// Content is the chunk text.
	Content string

	// Metadata holds the shared metadata keys (file_id, chunk_index, ...).
	Metadata map[string]any

	// Embedding is the chunk's vector representation.
	Embedding []float32
}

// DocumentMetadata is the single per-file metadata record.
type DocumentMetadata struct {
	// FileID is the primary key.
	FileID string

	// Title is the display name of the file.
	Title string

	// URL links back to the source file.
	URL string

	// Schema is set only for tabular files.
	Schema []string
}

// DocumentRow is one stored row of a tabular file.
type DocumentRow struct {
	// DatasetID equals the FileID of the tabular source file.
	DatasetID string

	// RowData maps column names to values for one row.
	RowData map[string]any
}
