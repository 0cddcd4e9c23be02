// Package chunk splits document text into overlapping windows of
// whitespace-delimited tokens.
package chunk

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// Defaults used when configuration leaves chunking unset.
const (
	DefaultChunkSize = 200
	DefaultOverlap   = 20
)

// Validate checks that a window of chunkSize tokens advancing by
// chunkSize-overlap always makes forward progress.
func Validate(chunkSize, overlap int) error {
	if chunkSize < 1 {
		return errors.New(errors.ErrCodeInvalidChunking,
			fmt.Sprintf("chunk size must be at least 1, got %d", chunkSize), nil)
	}
	if overlap < 0 || overlap >= chunkSize {
		return errors.New(errors.ErrCodeInvalidChunking,
			fmt.Sprintf("overlap must satisfy 0 <= overlap < chunk size, got overlap=%d chunk size=%d", overlap, chunkSize), nil).
			WithSuggestion("lower chunking.overlap below chunking.chunk_size")
	}
	return nil
}

// Split returns the ordered chunks of text. Chunk i covers tokens
// [i*step, i*step+chunkSize) where step = chunkSize-overlap; the last chunk
// may be shorter. Tokens inside a chunk are joined by a single space.
// Text with no tokens yields no chunks.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}

	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	step := chunkSize - overlap
	chunks := make([]string, 0, (len(tokens)+step-1)/step)
	for start := 0; start < len(tokens); start += step {
		end := min(start+chunkSize, len(tokens))
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
	}
	return chunks, nil
}
