package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/extract"
	"github.com/Aman-CERP/semidx/internal/store"
)

func TestSyncDirectory_Lifecycle(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Given: a tree with an ignored .git directory
			ctx := context.Background()
			root := t.TempDir()
			a := writeFile(t, root, "a.txt", "alpha beta gamma")
			b := writeFile(t, root, "b.md", "one two")
			c := writeFile(t, root, "sub/c.txt", "red green blue")
			writeFile(t, root, ".git/HEAD", "ref: refs/heads/main")
			emb := newFlakyEmbedder()
			ix := newTestIndexer(t, s, emb, Options{})

			// When: syncing for the first time
			res, err := ix.SyncDirectory(ctx, root, SyncOptions{})

			// Then: every visible file is indexed under its absolute path
			require.NoError(t, err)
			assert.Equal(t, 3, res.Scanned)
			assert.Equal(t, 3, res.Indexed)
			assert.Equal(t, 5, res.Chunks)
			assert.NoError(t, res.Err())
			files, err := ix.IndexedFiles(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{a, b, c}, files)

			// When: syncing again without changes
			calls := emb.calls.Load()
			res, err = ix.SyncDirectory(ctx, root, SyncOptions{})

			// Then: nothing is embedded
			require.NoError(t, err)
			assert.Equal(t, 3, res.Unchanged)
			assert.Zero(t, res.Indexed)
			assert.Equal(t, calls, emb.calls.Load())

			// When: one file changes and one disappears
			writeFile(t, root, "a.txt", "alpha beta gamma delta")
			require.NoError(t, os.Remove(b))
			res, err = ix.SyncDirectory(ctx, root, SyncOptions{})

			// Then
			require.NoError(t, err)
			assert.Equal(t, 1, res.Indexed)
			assert.Equal(t, 1, res.Removed)
			assert.Equal(t, 1, res.Unchanged)
			files, err = ix.IndexedFiles(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{a, c}, files)
		})
	}
}

func TestSyncDirectory_ExcludePrunesAndScopesToRoot(t *testing.T) {
	// Given: an indexed tree plus a document indexed from elsewhere
	ctx := context.Background()
	s := store.NewMemoryStore()
	root := t.TempDir()
	writeFile(t, root, "keep.txt", "keep me")
	writeFile(t, root, "sub/drop.txt", "drop me")
	outside := writeFile(t, t.TempDir(), "outside.txt", "far away")
	ix := newTestIndexer(t, s, newFlakyEmbedder(), Options{})
	_, err := ix.IndexFile(ctx, outside, nil)
	require.NoError(t, err)
	_, err = ix.SyncDirectory(ctx, root, SyncOptions{})
	require.NoError(t, err)

	// When: the sub directory becomes excluded
	res, err := ix.SyncDirectory(ctx, root, SyncOptions{Exclude: []string{"sub/**"}})

	// Then: its files leave the index; files outside root stay
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	files, err := ix.IndexedFiles(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(root, "keep.txt"), outside}, files)
}

func TestSyncDirectory_CollectsFailures(t *testing.T) {
	// Given: an embedder that refuses one file's chunk
	ctx := context.Background()
	s := store.NewMemoryStore()
	root := t.TempDir()
	writeFile(t, root, "good.txt", "fine words")
	bad := writeFile(t, root, "bad.txt", "poison pill")
	emb := newFlakyEmbedder()
	emb.setFail("poison pill")
	ix := newTestIndexer(t, s, emb, Options{})

	// When
	res, err := ix.SyncDirectory(ctx, root, SyncOptions{Workers: 1, Metadata: map[string]any{"source": "sync"}})

	// Then: the good file is indexed and the bad one reported
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, bad, res.Failed[0].Path)
	assert.ErrorContains(t, res.Err(), bad)
	for c, err := range s.AllChunks(ctx, nil) {
		require.NoError(t, err)
		assert.Equal(t, "sync", c.Metadata["source"])
	}
}

func TestSyncDirectory_Errors(t *testing.T) {
	s := store.NewMemoryStore()
	ix := newTestIndexer(t, s, newFlakyEmbedder(), Options{})

	t.Run("missing root", func(t *testing.T) {
		_, err := ix.SyncDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"), SyncOptions{})
		assert.Equal(t, errors.ErrCodeFileNotFound, errors.GetCode(err))
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := ix.SyncDirectory(context.Background(), t.TempDir(), SyncOptions{Include: []string{"[unclosed"}})
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	})

	t.Run("cancelled", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.txt", "words")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ix.SyncDirectory(ctx, root, SyncOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSyncDirectory_ReportsProgress(t *testing.T) {
	// Given: three new files
	root := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		writeFile(t, root, name, "words for "+name)
	}
	ix := newTestIndexer(t, store.NewMemoryStore(), newFlakyEmbedder(), Options{})

	// When
	var calls [][2]int
	_, err := ix.SyncDirectory(context.Background(), root, SyncOptions{
		Workers:  3,
		Progress: func(done, total int) { calls = append(calls, [2]int{done, total}) },
	})

	// Then: one serialized call per file, counting up
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, calls)
}

func TestSyncDirectory_RelativeIndexDocumentSharesKey(t *testing.T) {
	// Given: a document indexed by a path relative to the working directory
	ctx := context.Background()
	root := t.TempDir()
	t.Chdir(root)
	abs := writeFile(t, root, "a.txt", "alpha beta")
	ix := newTestIndexer(t, store.NewMemoryStore(), newFlakyEmbedder(), Options{})
	doc, err := ix.IndexDocument(ctx, "a.txt", "alpha beta", nil)
	require.NoError(t, err)
	assert.Equal(t, abs, doc.Path)

	// When: syncing the same directory by a relative root
	res, err := ix.SyncDirectory(ctx, ".", SyncOptions{})

	// Then: the file is stored once
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unchanged)
	files, err := ix.IndexedFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, files)

	// When: the file is deleted and the directory resynced
	require.NoError(t, os.Remove(abs))
	res, err = ix.SyncDirectory(ctx, ".", SyncOptions{})

	// Then: nothing stale remains
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	files, err = ix.IndexedFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestChangedFiles_VanishedAndUnreadable(t *testing.T) {
	// Given: two indexed files, one of which is deleted after the scan
	ctx := context.Background()
	root := t.TempDir()
	s := store.NewMemoryStore()
	keep := writeFile(t, root, "keep.txt", "kept words")
	gone := writeFile(t, root, "gone.txt", "gone words")
	dir := filepath.Join(root, "dir.txt")
	require.NoError(t, os.Mkdir(dir, 0o755))
	ix := newTestIndexer(t, s, newFlakyEmbedder(), Options{})
	_, err := ix.SyncDirectory(ctx, root, SyncOptions{})
	require.NoError(t, err)
	stored, err := s.Fingerprints(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(gone))

	// When: checking the scanned paths
	seen := map[string]struct{}{keep: {}, gone: {}, dir: {}}
	res := &SyncResult{}
	todo, err := ix.changedFiles(ctx, []string{keep, gone, dir}, stored, seen, res)

	// Then: the vanished file is dropped, the unreadable one is a failure,
	// and the rest of the batch is answered
	require.NoError(t, err)
	assert.Empty(t, todo)
	assert.Equal(t, 1, res.Unchanged)
	assert.NotContains(t, seen, gone)
	assert.Contains(t, seen, keep)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, dir, res.Failed[0].Path)
}

// vanishingExtractor deletes one file just before reading it, as an editor
// replacing a file would.
type vanishingExtractor struct {
	path string
}

func (v *vanishingExtractor) Extract(ctx context.Context, path string) (string, error) {
	if path == v.path {
		_ = os.Remove(path)
	}
	return extract.PlainText{}.Extract(ctx, path)
}

func TestSyncDirectory_FileVanishesBeforeRead(t *testing.T) {
	// Given: two indexed files
	ctx := context.Background()
	root := t.TempDir()
	a := writeFile(t, root, "a.txt", "alpha words")
	b := writeFile(t, root, "b.txt", "beta words")
	ext := &vanishingExtractor{}
	ix := newTestIndexer(t, store.NewMemoryStore(), newFlakyEmbedder(), Options{Extractor: ext})
	_, err := ix.SyncDirectory(ctx, root, SyncOptions{})
	require.NoError(t, err)

	// When: b changes and disappears between the fingerprint check and the read
	writeFile(t, root, "b.txt", "beta words changed")
	ext.path = b
	res, err := ix.SyncDirectory(ctx, root, SyncOptions{})

	// Then: the sync succeeds and b leaves the index
	require.NoError(t, err)
	assert.NoError(t, res.Err())
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 1, res.Unchanged)
	files, err := ix.IndexedFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a}, files)
}
