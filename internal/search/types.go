// Package search ranks stored chunks against a query by cosine similarity.
//
// The engine embeds the query, scans the store's current snapshot, drops
// results below the similarity floor and returns the best TopK in a stable
// order: equal scores keep the store's insertion order.
package search

import (
	"github.com/Aman-CERP/semidx/internal/store"
)

const (
	// DefaultTopK is used when a Query leaves TopK at zero.
	DefaultTopK = 5

	// MaxTopK bounds TopK for callers that take it from user input.
	MaxTopK = 1000
)

// Query describes one similarity search.
type Query struct {
	Text string

	// TopK is the maximum number of results. Zero means DefaultTopK.
	TopK int

	// MinSimilarity discards results scoring below it.
	MinSimilarity float64

	// FileFilters keeps chunks whose source file contains any of the
	// substrings, case-insensitively. Empty keeps everything.
	FileFilters []string
}

// SearchResult is a chunk with its cosine similarity to the query.
type SearchResult struct {
	Chunk      *store.Chunk
	Similarity float64
}

// Stats describes the work done by the last search, for logging and the
// status surfaces.
type Stats struct {
	Scanned  int
	Matched  int
	Returned int
}
