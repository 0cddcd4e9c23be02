// Package store persists chunks, their embeddings and per-file fingerprints.
//
// A ChunkStore has two backends: SQLite for durable indexes and an in-memory
// map for tests and throwaway sessions. Both replace a file's chunk set
// atomically so readers never observe a mix of old and new chunks.
package store

import (
	"context"
	"iter"
	"time"
)

// Chunk is one embedded, retrievable slice of a document.
type Chunk struct {
	ID         string
	SourceFile string
	Content    string
	// ChunkIndex is the 0-based ordinal within SourceFile.
	ChunkIndex int
	Embedding  []float32
	Metadata   map[string]any
	IndexedAt  time.Time

	// Provenance of the file content the chunk was cut from.
	ContentHash  string
	FileModified time.Time
	FileSize     int64
}

// FileFingerprint records the content digest a file had when its chunks were
// written. It exists exactly when the file has at least one stored chunk.
type FileFingerprint struct {
	FilePath     string
	ContentHash  string
	FileSize     int64
	LastModified time.Time
	LastChecked  time.Time
	ChunkCount   int
}

// Stats summarizes the store contents.
type Stats struct {
	Files      int
	Chunks     int
	Dimensions int
}

// ChunkStore is the storage abstraction shared by both backends.
type ChunkStore interface {
	// ReplaceFile atomically deletes every chunk of filePath, inserts chunks
	// and upserts fp. On error or cancellation nothing changes.
	// An empty chunk set removes the file.
	ReplaceFile(ctx context.Context, filePath string, chunks []*Chunk, fp *FileFingerprint) error

	// RemoveFile atomically deletes the chunks and fingerprint of filePath.
	RemoveFile(ctx context.Context, filePath string) error

	// Clear atomically empties the store.
	Clear(ctx context.Context) error

	// AllChunks yields chunks in insertion order. With fileFilters, only
	// chunks whose SourceFile contains one of the filters (case-insensitive)
	// are yielded. The sequence reflects a single consistent snapshot.
	AllChunks(ctx context.Context, fileFilters []string) iter.Seq2[*Chunk, error]

	ChunkCount(ctx context.Context) (int, error)

	// IndexedFiles returns the sorted distinct source files.
	IndexedFiles(ctx context.Context) ([]string, error)

	// GetFingerprint returns nil, nil when filePath has no record.
	GetFingerprint(ctx context.Context, filePath string) (*FileFingerprint, error)

	// Fingerprints loads the records for paths in one round-trip. Paths
	// without a record are absent from the map. A nil slice loads all.
	Fingerprints(ctx context.Context, paths []string) (map[string]*FileFingerprint, error)

	Stats(ctx context.Context) (*Stats, error)

	Close() error
}
