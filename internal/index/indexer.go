// Package index keeps a semantic chunk index in step with document content.
//
// IndexDocument is the only way chunks enter the store: it skips files whose
// content digest is unchanged, otherwise chunks and embeds the text and
// replaces the file's previous chunk set in one transaction. A failure at any
// step leaves both the chunks and the stored fingerprint as they were, so a
// retry re-indexes instead of trusting a half-written state.
package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/semidx/internal/chunk"
	"github.com/Aman-CERP/semidx/internal/embed"
	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/extract"
	"github.com/Aman-CERP/semidx/internal/fingerprint"
	"github.com/Aman-CERP/semidx/internal/scanner"
	"github.com/Aman-CERP/semidx/internal/search"
	"github.com/Aman-CERP/semidx/internal/store"
)

// DefaultEmbedConcurrency is the number of embedding batches in flight per
// document.
const DefaultEmbedConcurrency = 4

// Options tunes an Indexer. Zero values take defaults.
type Options struct {
	ChunkSize int
	Overlap   int

	// EmbedBatchSize is the number of chunk texts per EmbedBatch call.
	EmbedBatchSize int

	// EmbedConcurrency bounds concurrent EmbedBatch calls per document.
	EmbedConcurrency int

	// Extractor reads files for IndexFile and SyncDirectory. Default:
	// extract.PlainText.
	Extractor extract.Extractor

	Logger *slog.Logger
}

// Status is the outcome of indexing one document.
type Status string

const (
	// StatusIndexed means the chunk set was written.
	StatusIndexed Status = "indexed"
	// StatusUnchanged means the stored fingerprint matched; nothing ran.
	StatusUnchanged Status = "unchanged"
	// StatusRemoved means the new content produced no chunks, so the file
	// left the index.
	StatusRemoved Status = "removed"
)

// DocumentResult describes one IndexDocument call.
type DocumentResult struct {
	Path        string
	Status      Status
	Chunks      int
	ContentHash string
	Duration    time.Duration
}

// Indexer composes chunker, embedder, fingerprint tracker, store and search
// engine. It owns none of them; callers close the store and embedder.
type Indexer struct {
	store     store.ChunkStore
	embedder  embed.Embedder
	tracker   *fingerprint.Tracker
	engine    *search.Engine
	extractor extract.Extractor
	scanner   *scanner.Scanner
	opts      Options
	logger    *slog.Logger
	locks     *fileLocks
}

// New creates an Indexer. Invalid chunking parameters are rejected here so
// every later call can rely on them.
func New(s store.ChunkStore, e embed.Embedder, tracker *fingerprint.Tracker, opts Options) (*Indexer, error) {
	if s == nil || e == nil || tracker == nil {
		return nil, errors.InternalError("indexer needs a store, an embedder and a fingerprint tracker", nil)
	}
	if opts.ChunkSize == 0 && opts.Overlap == 0 {
		opts.ChunkSize, opts.Overlap = chunk.DefaultChunkSize, chunk.DefaultOverlap
	}
	if err := chunk.Validate(opts.ChunkSize, opts.Overlap); err != nil {
		return nil, err
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = embed.DefaultBatchSize
	}
	opts.EmbedBatchSize = min(opts.EmbedBatchSize, embed.MaxBatchSize)
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = DefaultEmbedConcurrency
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.PlainText{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine, err := search.NewEngine(s, e, search.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &Indexer{
		store:     s,
		embedder:  e,
		tracker:   tracker,
		engine:    engine,
		extractor: opts.Extractor,
		scanner:   scanner.New(),
		opts:      opts,
		logger:    logger,
		locks:     newFileLocks(),
	}, nil
}

// IndexDocument indexes content under filePath. The file must exist on
// disk: its bytes are fingerprinted to decide whether anything changed.
// Caller metadata values must be JSON scalars.
func (i *Indexer) IndexDocument(ctx context.Context, filePath, content string, metadata map[string]any) (*DocumentResult, error) {
	return i.index(ctx, filePath, metadata, func(context.Context, string) (string, error) {
		return content, nil
	})
}

// IndexFile is IndexDocument with the content read by the configured
// extractor. Unchanged files are not read at all.
func (i *Indexer) IndexFile(ctx context.Context, filePath string, metadata map[string]any) (*DocumentResult, error) {
	return i.index(ctx, filePath, metadata, i.extractor.Extract)
}

func (i *Indexer) index(ctx context.Context, filePath string, metadata map[string]any,
	load func(context.Context, string) (string, error)) (*DocumentResult, error) {
	start := time.Now()

	key, err := normalizePath(filePath)
	if err != nil {
		return nil, err
	}
	if err := validateMetadata(metadata); err != nil {
		return nil, err
	}

	release, err := i.locks.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	stored, err := i.store.GetFingerprint(ctx, key)
	if err != nil {
		return nil, err
	}
	check, err := i.tracker.Check(ctx, key, stored)
	if err != nil {
		return nil, err
	}
	if !check.Changed {
		i.logger.Debug("index_document_unchanged", slog.String("path", key))
		return &DocumentResult{
			Path:        key,
			Status:      StatusUnchanged,
			Chunks:      stored.ChunkCount,
			ContentHash: stored.ContentHash,
			Duration:    time.Since(start),
		}, nil
	}

	content, err := load(ctx, key)
	if err != nil {
		return nil, err
	}
	texts, err := chunk.Split(content, i.opts.ChunkSize, i.opts.Overlap)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		if err := i.store.RemoveFile(ctx, key); err != nil {
			return nil, err
		}
		i.logger.Info("index_document_emptied", slog.String("path", key))
		return &DocumentResult{Path: key, Status: StatusRemoved, ContentHash: check.Current.ContentHash, Duration: time.Since(start)}, nil
	}

	vectors, err := i.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	fp := *check.Current
	fp.LastChecked = now
	chunks := buildChunks(key, texts, vectors, metadata, &fp, now)
	if err := i.store.ReplaceFile(ctx, key, chunks, &fp); err != nil {
		return nil, err
	}

	res := &DocumentResult{
		Path:        key,
		Status:      StatusIndexed,
		Chunks:      len(chunks),
		ContentHash: fp.ContentHash,
		Duration:    time.Since(start),
	}
	i.logger.Info("index_document_completed",
		slog.String("path", key),
		slog.Int("chunks", res.Chunks),
		slog.Bool("new", stored == nil),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// Search ranks stored chunks against q.
func (i *Indexer) Search(ctx context.Context, q search.Query) ([]*search.SearchResult, error) {
	return i.engine.Search(ctx, q)
}

// ChunkCount returns the number of stored chunks.
func (i *Indexer) ChunkCount(ctx context.Context) (int, error) {
	return i.store.ChunkCount(ctx)
}

// IndexedFiles returns the sorted paths that have chunks.
func (i *Indexer) IndexedFiles(ctx context.Context) ([]string, error) {
	return i.store.IndexedFiles(ctx)
}

// Stats summarizes the index.
func (i *Indexer) Stats(ctx context.Context) (*store.Stats, error) {
	return i.store.Stats(ctx)
}

// RemoveFile drops a file's chunks and fingerprint.
func (i *Indexer) RemoveFile(ctx context.Context, filePath string) error {
	key, err := normalizePath(filePath)
	if err != nil {
		return err
	}
	release, err := i.locks.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	if err := i.store.RemoveFile(ctx, key); err != nil {
		return err
	}
	i.logger.Info("index_file_removed", slog.String("path", key))
	return nil
}

// Clear empties the index and the fingerprint cache.
func (i *Indexer) Clear(ctx context.Context) error {
	if err := i.store.Clear(ctx); err != nil {
		return err
	}
	i.tracker.ClearCache()
	i.logger.Info("index_cleared")
	return nil
}

// EmbedderModel names the embedding model in use.
func (i *Indexer) EmbedderModel() string {
	return i.embedder.ModelName()
}

// normalizePath resolves filePath to a clean absolute path, the key chunks
// and fingerprints are stored under.
func normalizePath(filePath string) (string, error) {
	if filePath == "" {
		return "", errors.New(errors.ErrCodeInvalidPath, "file path is empty", nil)
	}
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", errors.New(errors.ErrCodeInvalidPath, "resolve file path", err).WithDetail("path", filePath)
	}
	return abs, nil
}
