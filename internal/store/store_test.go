package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semidx/internal/errors"
)

type storeFactory struct {
	name string
	open func(t *testing.T) ChunkStore
}

func backends() []storeFactory {
	return []storeFactory{
		{name: "memory", open: func(t *testing.T) ChunkStore {
			s := NewMemoryStore()
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
		{name: "sqlite", open: func(t *testing.T) ChunkStore {
			return newTestSQLiteStore(t)
		}},
	}
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"), DriverModernc, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// makeChunks builds n chunks for path whose embeddings are dims long and
// tagged with version so replacement can be observed.
func makeChunks(path string, n, dims int, version string) ([]*Chunk, *FileFingerprint) {
	now := time.Now()
	chunks := make([]*Chunk, n)
	for i := range chunks {
		emb := make([]float32, dims)
		for d := range emb {
			emb[d] = float32(i+1) / float32(d+1)
		}
		chunks[i] = &Chunk{
			ID:           fmt.Sprintf("%s#%s#%d", path, version, i),
			SourceFile:   path,
			Content:      fmt.Sprintf("%s chunk %d of %s", version, i, path),
			ChunkIndex:   i,
			Embedding:    emb,
			Metadata:     map[string]any{"version": version, "total_chunks": n},
			IndexedAt:    now,
			ContentHash:  "hash-" + version,
			FileModified: now,
			FileSize:     int64(100 * n),
		}
	}
	fp := &FileFingerprint{
		FilePath:     path,
		ContentHash:  "hash-" + version,
		FileSize:     int64(100 * n),
		LastModified: now,
		LastChecked:  now,
	}
	return chunks, fp
}

func collect(t *testing.T, s ChunkStore, filters ...string) []*Chunk {
	t.Helper()
	var out []*Chunk
	for c, err := range s.AllChunks(context.Background(), filters) {
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func TestChunkStore_ReplaceFile_InsertsChunksAndFingerprint(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			// Given: an empty store
			s := b.open(t)
			ctx := context.Background()
			chunks, fp := makeChunks("docs/a.txt", 3, 4, "v1")

			// When: replacing the file
			require.NoError(t, s.ReplaceFile(ctx, "docs/a.txt", chunks, fp))

			// Then: chunks and fingerprint are visible
			count, err := s.ChunkCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, count)

			got, err := s.GetFingerprint(ctx, "docs/a.txt")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "hash-v1", got.ContentHash)
			assert.Equal(t, 3, got.ChunkCount)
			assert.Equal(t, int64(300), got.FileSize)
			assert.True(t, got.LastModified.Equal(fp.LastModified))

			stored := collect(t, s)
			require.Len(t, stored, 3)
			for i, c := range stored {
				assert.Equal(t, i, c.ChunkIndex)
				assert.Equal(t, chunks[i].Content, c.Content)
				assert.Equal(t, chunks[i].Embedding, c.Embedding)
				assert.Equal(t, "v1", c.Metadata["version"])
				assert.Equal(t, float64(3), c.Metadata["total_chunks"])
				assert.Equal(t, "hash-v1", c.ContentHash)
			}
		})
	}
}

func TestChunkStore_ReplaceFile_ReplacesPreviousSet(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()

			old, oldFP := makeChunks("a.txt", 5, 4, "v1")
			require.NoError(t, s.ReplaceFile(ctx, "a.txt", old, oldFP))

			// When: re-indexing with fewer chunks
			next, nextFP := makeChunks("a.txt", 2, 4, "v2")
			require.NoError(t, s.ReplaceFile(ctx, "a.txt", next, nextFP))

			// Then: only the new set remains
			stored := collect(t, s)
			require.Len(t, stored, 2)
			for _, c := range stored {
				assert.Equal(t, "v2", c.Metadata["version"])
			}
			fp, err := s.GetFingerprint(ctx, "a.txt")
			require.NoError(t, err)
			assert.Equal(t, "hash-v2", fp.ContentHash)
			assert.Equal(t, 2, fp.ChunkCount)
		})
	}
}

func TestChunkStore_ReplaceFile_RollsBackOnFailure(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			// Given: a.txt v1 and b.txt stored
			s := b.open(t)
			ctx := context.Background()
			v1, v1FP := makeChunks("a.txt", 3, 4, "v1")
			require.NoError(t, s.ReplaceFile(ctx, "a.txt", v1, v1FP))
			other, otherFP := makeChunks("b.txt", 2, 4, "b")
			require.NoError(t, s.ReplaceFile(ctx, "b.txt", other, otherFP))

			// When: the replacement's third chunk collides with a b.txt id
			v2, v2FP := makeChunks("a.txt", 4, 4, "v2")
			v2[2].ID = other[0].ID
			err := s.ReplaceFile(ctx, "a.txt", v2, v2FP)

			// Then: the write fails as a storage error and a.txt is untouched
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryStorage), "got %v", err)

			stored := collect(t, s, "a.txt")
			require.Len(t, stored, 3)
			for _, c := range stored {
				assert.Equal(t, "v1", c.Metadata["version"])
			}
			fp, err := s.GetFingerprint(ctx, "a.txt")
			require.NoError(t, err)
			assert.Equal(t, "hash-v1", fp.ContentHash)
			assert.Equal(t, 3, fp.ChunkCount)
		})
	}
}

func TestChunkStore_ReplaceFile_CancelledContextLeavesStoreUnchanged(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			v1, v1FP := makeChunks("a.txt", 2, 4, "v1")
			require.NoError(t, s.ReplaceFile(context.Background(), "a.txt", v1, v1FP))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			v2, v2FP := makeChunks("a.txt", 3, 4, "v2")
			err := s.ReplaceFile(ctx, "a.txt", v2, v2FP)

			require.Error(t, err)
			assert.ErrorIs(t, err, context.Canceled)
			stored := collect(t, s)
			require.Len(t, stored, 2)
			assert.Equal(t, "v1", stored[0].Metadata["version"])
		})
	}
}

func TestChunkStore_ReplaceFile_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(chunks []*Chunk, fp *FileFingerprint) *FileFingerprint
		wantCode string
	}{
		{
			name: "gap in chunk indexes",
			mutate: func(chunks []*Chunk, fp *FileFingerprint) *FileFingerprint {
				chunks[1].ChunkIndex = 2
				return fp
			},
			wantCode: errors.ErrCodeInvalidInput,
		},
		{
			name: "mixed dimensions",
			mutate: func(chunks []*Chunk, fp *FileFingerprint) *FileFingerprint {
				chunks[1].Embedding = chunks[1].Embedding[:2]
				return fp
			},
			wantCode: errors.ErrCodeDimensionMismatch,
		},
		{
			name: "chunk from another file",
			mutate: func(chunks []*Chunk, fp *FileFingerprint) *FileFingerprint {
				chunks[0].SourceFile = "other.txt"
				return fp
			},
			wantCode: errors.ErrCodeInvalidInput,
		},
		{
			name: "missing fingerprint",
			mutate: func(chunks []*Chunk, fp *FileFingerprint) *FileFingerprint {
				return nil
			},
			wantCode: errors.ErrCodeInvalidInput,
		},
	}

	for _, b := range backends() {
		for _, tt := range tests {
			t.Run(b.name+"/"+tt.name, func(t *testing.T) {
				s := b.open(t)
				chunks, fp := makeChunks("a.txt", 2, 4, "v1")
				fp = tt.mutate(chunks, fp)

				err := s.ReplaceFile(context.Background(), "a.txt", chunks, fp)

				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.GetCode(err))
				count, err := s.ChunkCount(context.Background())
				require.NoError(t, err)
				assert.Zero(t, count)
			})
		}
	}
}

func TestChunkStore_ReplaceFile_RejectsDimensionChange(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			a, aFP := makeChunks("a.txt", 1, 4, "v1")
			require.NoError(t, s.ReplaceFile(ctx, "a.txt", a, aFP))

			bc, bFP := makeChunks("b.txt", 1, 8, "v1")
			err := s.ReplaceFile(ctx, "b.txt", bc, bFP)

			assert.Equal(t, errors.ErrCodeDimensionMismatch, errors.GetCode(err))

			// The only file may change dimensions, since nothing else is stored.
			a2, a2FP := makeChunks("a.txt", 1, 8, "v2")
			require.NoError(t, s.ReplaceFile(ctx, "a.txt", a2, a2FP))
			st, err := s.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 8, st.Dimensions)
		})
	}
}

func TestChunkStore_RemoveFile(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			a, aFP := makeChunks("a.txt", 2, 4, "a")
			bc, bFP := makeChunks("b.txt", 3, 4, "b")
			require.NoError(t, s.ReplaceFile(ctx, "a.txt", a, aFP))
			require.NoError(t, s.ReplaceFile(ctx, "b.txt", bc, bFP))

			require.NoError(t, s.RemoveFile(ctx, "a.txt"))
			require.NoError(t, s.RemoveFile(ctx, "missing.txt"))

			fp, err := s.GetFingerprint(ctx, "a.txt")
			require.NoError(t, err)
			assert.Nil(t, fp)
			files, err := s.IndexedFiles(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"b.txt"}, files)
			count, err := s.ChunkCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, count)
		})
	}
}

func TestChunkStore_ReplaceFile_EmptySetRemovesFile(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			a, aFP := makeChunks("a.txt", 2, 4, "a")
			require.NoError(t, s.ReplaceFile(ctx, "a.txt", a, aFP))

			require.NoError(t, s.ReplaceFile(ctx, "a.txt", nil, nil))

			fp, err := s.GetFingerprint(ctx, "a.txt")
			require.NoError(t, err)
			assert.Nil(t, fp)
			assert.Empty(t, collect(t, s))
		})
	}
}

func TestChunkStore_Clear(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			a, aFP := makeChunks("a.txt", 2, 4, "a")
			require.NoError(t, s.ReplaceFile(ctx, "a.txt", a, aFP))

			require.NoError(t, s.Clear(ctx))

			count, err := s.ChunkCount(ctx)
			require.NoError(t, err)
			assert.Zero(t, count)
			fps, err := s.Fingerprints(ctx, nil)
			require.NoError(t, err)
			assert.Empty(t, fps)
			files, err := s.IndexedFiles(ctx)
			require.NoError(t, err)
			assert.Empty(t, files)
		})
	}
}

func TestChunkStore_AllChunks_FiltersCaseInsensitive(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			for _, path := range []string{"docs/A.txt", "docs/b.txt", "notes/c.md"} {
				chunks, fp := makeChunks(path, 2, 4, path)
				require.NoError(t, s.ReplaceFile(ctx, path, chunks, fp))
			}

			tests := []struct {
				filters []string
				want    []string
			}{
				{nil, []string{"docs/A.txt", "docs/b.txt", "notes/c.md"}},
				{[]string{"a."}, []string{"docs/A.txt"}},
				{[]string{"DOCS/"}, []string{"docs/A.txt", "docs/b.txt"}},
				{[]string{"c.md", "b.txt"}, []string{"docs/b.txt", "notes/c.md"}},
				{[]string{"nothing"}, nil},
			}
			for _, tt := range tests {
				var files []string
				seen := map[string]bool{}
				for _, c := range collect(t, s, tt.filters...) {
					if !seen[c.SourceFile] {
						seen[c.SourceFile] = true
						files = append(files, c.SourceFile)
					}
				}
				assert.Equal(t, tt.want, files, "filters %v", tt.filters)
			}
		})
	}
}

func TestChunkStore_AllChunks_InsertionOrder(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			z, zFP := makeChunks("z.txt", 2, 4, "z")
			a, aFP := makeChunks("a.txt", 2, 4, "a")
			require.NoError(t, s.ReplaceFile(ctx, "z.txt", z, zFP))
			require.NoError(t, s.ReplaceFile(ctx, "a.txt", a, aFP))

			var ids []string
			for _, c := range collect(t, s) {
				ids = append(ids, c.ID)
			}

			assert.Equal(t, []string{z[0].ID, z[1].ID, a[0].ID, a[1].ID}, ids)
		})
	}
}

func TestChunkStore_AllChunks_StopsEarly(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			chunks, fp := makeChunks("a.txt", 5, 4, "a")
			require.NoError(t, s.ReplaceFile(ctx, "a.txt", chunks, fp))

			n := 0
			for _, err := range s.AllChunks(ctx, nil) {
				require.NoError(t, err)
				n++
				if n == 2 {
					break
				}
			}

			// The store is usable after an abandoned iteration.
			assert.Equal(t, 2, n)
			count, err := s.ChunkCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, 5, count)
		})
	}
}

func TestChunkStore_IndexedFilesSorted(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			for _, path := range []string{"c.txt", "a.txt", "b.txt"} {
				chunks, fp := makeChunks(path, 1, 4, path)
				require.NoError(t, s.ReplaceFile(ctx, path, chunks, fp))
			}

			files, err := s.IndexedFiles(ctx)

			require.NoError(t, err)
			assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, files)
		})
	}
}

func TestChunkStore_Fingerprints_Bulk(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			for _, path := range []string{"a.txt", "b.txt", "c.txt"} {
				chunks, fp := makeChunks(path, 1, 4, path)
				require.NoError(t, s.ReplaceFile(ctx, path, chunks, fp))
			}

			some, err := s.Fingerprints(ctx, []string{"a.txt", "c.txt", "missing.txt"})
			require.NoError(t, err)
			assert.Len(t, some, 2)
			assert.Equal(t, "hash-c.txt", some["c.txt"].ContentHash)

			all, err := s.Fingerprints(ctx, nil)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			none, err := s.Fingerprints(ctx, []string{})
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestChunkStore_Stats(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()

			empty, err := s.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, Stats{}, *empty)

			chunks, fp := makeChunks("a.txt", 3, 6, "a")
			require.NoError(t, s.ReplaceFile(ctx, "a.txt", chunks, fp))
			st, err := s.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, Stats{Files: 1, Chunks: 3, Dimensions: 6}, *st)
		})
	}
}

func TestChunkStore_ClosedStoreFails(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			require.NoError(t, s.Close())
			require.NoError(t, s.Close())

			_, err := s.ChunkCount(context.Background())
			assert.True(t, errors.IsCategory(err, errors.CategoryStorage))
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	// Given: a store with one file, closed
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := NewSQLiteStore(path, "", nil)
	require.NoError(t, err)
	chunks, fp := makeChunks("a.txt", 2, 3, "v1")
	chunks[0].Embedding = []float32{float32(math.Inf(-1)), math.SmallestNonzeroFloat32, float32(math.Copysign(0, -1))}
	require.NoError(t, s.ReplaceFile(context.Background(), "a.txt", chunks, fp))
	require.NoError(t, s.Close())

	// When: reopening
	reopened, err := NewSQLiteStore(path, "", nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	// Then: everything is still there, embeddings bit for bit
	stored := collect(t, reopened)
	require.Len(t, stored, 2)
	for i := range stored {
		require.Len(t, stored[i].Embedding, 3)
		for d := range stored[i].Embedding {
			assert.Equal(t, math.Float32bits(chunks[i].Embedding[d]), math.Float32bits(stored[i].Embedding[d]))
		}
	}
	assert.Equal(t, chunks[0].FileModified.UnixNano(), stored[0].FileModified.UnixNano())
}

func TestSQLiteStore_CorruptFingerprintIsStorageError(t *testing.T) {
	// Given: a fingerprint row with a non-numeric chunk count
	s := newTestSQLiteStore(t)
	_, err := s.db.Exec(`INSERT INTO file_fingerprints
		(file_path, content_hash, file_size, file_modified, last_checked, chunk_count)
		VALUES ('bad.txt', 'abc', 10, 0, 0, 'garbage')`)
	require.NoError(t, err)

	// When: reading it
	fp, err := s.GetFingerprint(context.Background(), "bad.txt")

	// Then: corruption surfaces instead of reading as "no record"
	require.Error(t, err)
	assert.Nil(t, fp)
	assert.True(t, errors.IsCategory(err, errors.CategoryStorage))
	assert.Equal(t, errors.ErrCodeCorruptRow, errors.GetCode(err))
}

func TestSQLiteStore_CorruptEmbeddingIsStorageError(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.db.Exec(`INSERT INTO chunks
		(id, source_file, content, chunk_index, embedding, metadata, indexed_at, content_hash, file_modified, file_size)
		VALUES ('x', 'bad.txt', 'text', 0, X'010203', '{}', 0, 'h', 0, 1)`)
	require.NoError(t, err)

	var gotErr error
	for _, err := range s.AllChunks(context.Background(), nil) {
		gotErr = err
	}

	assert.Equal(t, errors.ErrCodeCorruptRow, errors.GetCode(gotErr))
}

func TestOpen_SelectsBackend(t *testing.T) {
	mem, err := Open(Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, mem)
	require.NoError(t, mem.Close())

	durable, err := Open(Options{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, durable)
	require.NoError(t, durable.Close())

	_, err = Open(Options{Backend: "redis"})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))

	_, err = NewSQLiteStore(filepath.Join(t.TempDir(), "y.db"), "postgres", nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}
