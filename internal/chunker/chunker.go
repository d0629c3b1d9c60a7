// Package chunker splits extracted text into fixed-size sliding windows
// for embedding. Window boundaries are measured in characters, not bytes,
// so multi-byte runes are never split.
package chunker

import "strings"

// Chunker produces sliding windows of Size characters, each consecutive
// pair sharing Overlap characters. Overlap must be smaller than Size;
// config validation enforces that before a Chunker is constructed.
type Chunker struct {
	size    int
	overlap int
}

// New returns a chunker with the given window size and overlap.
func New(size, overlap int) *Chunker {
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the configured window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured window overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into windows. Null bytes are removed because Postgres
// rejects them in text columns; carriage returns are removed so chunk
// boundaries are stable across platforms. Empty input yields nil.
func (c *Chunker) Chunk(text string) []string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r", "")
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := c.size - c.overlap

	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
