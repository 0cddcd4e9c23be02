package store

import (
	"context"
	"iter"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/Aman-CERP/semidx/internal/errors"
)

type memoryFile struct {
	chunks      []*Chunk
	seqs        []uint64
	fingerprint *FileFingerprint
}

// MemoryStore is the in-memory ChunkStore backend. Each file's chunk set is
// swapped under the write lock, so readers see either the old or the new set.
type MemoryStore struct {
	mu     sync.RWMutex
	files  map[string]*memoryFile
	seq    uint64
	closed bool
}

var _ ChunkStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]*memoryFile)}
}

func (m *MemoryStore) checkOpen() error {
	if m.closed {
		return errors.StorageError("chunk store is closed", nil)
	}
	return nil
}

// ReplaceFile implements ChunkStore.
func (m *MemoryStore) ReplaceFile(ctx context.Context, filePath string, chunks []*Chunk, fp *FileFingerprint) error {
	dims, err := checkReplace(filePath, chunks, fp)
	if err != nil {
		return err
	}

	// Build the replacement before taking the lock; a failure here leaves
	// the store untouched.
	next := &memoryFile{chunks: make([]*Chunk, len(chunks))}
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Round-trip metadata through JSON so both backends return the
		// same value types.
		raw, err := encodeMetadata(c.Metadata)
		if err != nil {
			return errors.New(errors.ErrCodeInvalidMetadata, "encode chunk metadata", err)
		}
		clone := cloneChunk(c)
		if clone.Metadata, err = decodeMetadata(raw); err != nil {
			return errors.New(errors.ErrCodeInvalidMetadata, "decode chunk metadata", err)
		}
		next.chunks[i] = clone
	}
	if len(chunks) > 0 {
		fpCopy := *fp
		next.fingerprint = &fpCopy
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if dims > 0 {
		if stored := m.dimensionsExcept(filePath); stored > 0 && stored != dims {
			return dimensionMismatch(dims, stored)
		}
	}
	if len(chunks) == 0 {
		delete(m.files, filePath)
		return nil
	}

	ids := make(map[string]struct{}, len(chunks))
	for _, c := range next.chunks {
		if _, dup := ids[c.ID]; dup {
			return errors.StorageError("duplicate chunk id "+c.ID, nil)
		}
		ids[c.ID] = struct{}{}
	}
	for path, f := range m.files {
		if path == filePath {
			continue
		}
		for _, c := range f.chunks {
			if _, dup := ids[c.ID]; dup {
				return errors.StorageError("duplicate chunk id "+c.ID, nil)
			}
		}
	}

	next.seqs = make([]uint64, len(next.chunks))
	for i := range next.chunks {
		m.seq++
		next.seqs[i] = m.seq
	}
	m.files[filePath] = next
	return nil
}

func (m *MemoryStore) dimensionsExcept(filePath string) int {
	for path, f := range m.files {
		if path != filePath && len(f.chunks) > 0 {
			return len(f.chunks[0].Embedding)
		}
	}
	return 0
}

// RemoveFile implements ChunkStore.
func (m *MemoryStore) RemoveFile(ctx context.Context, filePath string) error {
	return m.ReplaceFile(ctx, filePath, nil, nil)
}

// Clear implements ChunkStore.
func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.files = make(map[string]*memoryFile)
	return nil
}

// AllChunks implements ChunkStore. The snapshot is taken when iteration
// starts.
func (m *MemoryStore) AllChunks(ctx context.Context, fileFilters []string) iter.Seq2[*Chunk, error] {
	filters := lowerFilters(fileFilters)
	return func(yield func(*Chunk, error) bool) {
		type entry struct {
			seq   uint64
			chunk *Chunk
		}

		m.mu.RLock()
		if err := m.checkOpen(); err != nil {
			m.mu.RUnlock()
			yield(nil, err)
			return
		}
		var snapshot []entry
		for path, f := range m.files {
			if !matchesFilters(path, filters) {
				continue
			}
			for i, c := range f.chunks {
				snapshot = append(snapshot, entry{seq: f.seqs[i], chunk: c})
			}
		}
		m.mu.RUnlock()

		sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].seq < snapshot[j].seq })
		for _, e := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(cloneChunk(e.chunk), nil) {
				return
			}
		}
	}
}

// ChunkCount implements ChunkStore.
func (m *MemoryStore) ChunkCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	n := 0
	for _, f := range m.files {
		n += len(f.chunks)
	}
	return n, nil
}

// IndexedFiles implements ChunkStore.
func (m *MemoryStore) IndexedFiles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	files := slices.Sorted(maps.Keys(m.files))
	if files == nil {
		files = []string{}
	}
	return files, nil
}

// GetFingerprint implements ChunkStore.
func (m *MemoryStore) GetFingerprint(ctx context.Context, filePath string) (*FileFingerprint, error) {
	fps, err := m.Fingerprints(ctx, []string{filePath})
	if err != nil {
		return nil, err
	}
	return fps[filePath], nil
}

// Fingerprints implements ChunkStore.
func (m *MemoryStore) Fingerprints(ctx context.Context, paths []string) (map[string]*FileFingerprint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	result := make(map[string]*FileFingerprint)
	add := func(path string, f *memoryFile) {
		fp := *f.fingerprint
		result[path] = &fp
	}
	if paths == nil {
		for path, f := range m.files {
			add(path, f)
		}
		return result, nil
	}
	for _, path := range paths {
		if f, ok := m.files[path]; ok {
			add(path, f)
		}
	}
	return result, nil
}

// Stats implements ChunkStore.
func (m *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	st := &Stats{Files: len(m.files), Dimensions: m.dimensionsExcept("")}
	for _, f := range m.files {
		st.Chunks += len(f.chunks)
	}
	return st, nil
}

// Close releases the stored data.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.files = nil
	return nil
}

func cloneChunk(c *Chunk) *Chunk {
	out := *c
	out.Embedding = slices.Clone(c.Embedding)
	out.Metadata = maps.Clone(c.Metadata)
	return &out
}
