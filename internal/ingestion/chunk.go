package ingestion

// Default chunking parameters. The overlap keeps context that straddles a
// chunk boundary retrievable from both sides.
const (
	// DefaultChunkSize is the maximum number of bytes per chunk.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of bytes shared between consecutive chunks.
	DefaultChunkOverlap = 200
)

// Chunker splits normalized text into overlapping bounded-size segments
// suitable for embedding. Splitting is deterministic for identical input.
type Chunker struct {
	// Size is the maximum chunk length. Defaults to DefaultChunkSize if zero.
	Size int
	// Overlap is the length shared between consecutive chunks. Must be
	// positive and smaller than Size; defaults to DefaultChunkOverlap
	// (clamped to a fifth of Size) otherwise.
	Overlap int
}

// Split cuts text into overlapping chunks. Empty input produces zero chunks.
// Every chunk is at most Size long, and consecutive chunks share Overlap
// bytes, so concatenating the chunks minus their overlapped prefixes
// reconstructs the input.
func (c Chunker) Split(text string) []string {
	size := c.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := c.Overlap
	if overlap <= 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}

	if len(text) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(text); start += size - overlap {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}

	return chunks
}
