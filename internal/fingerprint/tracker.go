// Package fingerprint decides whether a file must be re-indexed by comparing
// its SHA-256 content digest with the digest stored at the last indexing.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/store"
)

// DefaultCacheSize is the number of file digests kept in memory.
const DefaultCacheSize = 4096

// Options configures a Tracker.
type Options struct {
	// TrustModTime lets a matching modification time and size stand in for
	// hashing. Off, the digest is always recomputed.
	TrustModTime bool

	// CacheSize bounds the in-memory digest cache. Zero means DefaultCacheSize.
	CacheSize int

	// Workers bounds concurrent hashing in BatchCheck. Zero means GOMAXPROCS.
	Workers int
}

type cachedDigest struct {
	modTime int64
	size    int64
	hash    string
}

// Tracker computes and compares file fingerprints.
type Tracker struct {
	opts  Options
	cache *lru.Cache[string, cachedDigest]
}

// Result is the outcome of checking one file.
type Result struct {
	Changed bool
	// Current is the live fingerprint. It is nil when the mtime fast path
	// reported the file unchanged without hashing.
	Current *store.FileFingerprint
}

// New creates a Tracker.
func New(opts Options) (*Tracker, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	cache, err := lru.New[string, cachedDigest](opts.CacheSize)
	if err != nil {
		return nil, errors.InternalError("create fingerprint cache", err)
	}
	return &Tracker{opts: opts, cache: cache}, nil
}

// ComputeHash streams the file through SHA-256 and returns the hex digest.
func (t *Tracker) ComputeHash(ctx context.Context, path string) (string, error) {
	f, err := open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, &ctxReader{ctx: ctx, r: f}); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.IOError(fmt.Sprintf("read %s", path), err).WithDetail("path", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Check compares path against its stored fingerprint. A nil stored record
// means the file is new.
func (t *Tracker) Check(ctx context.Context, path string, stored *store.FileFingerprint) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := stat(path)
	if err != nil {
		return nil, err
	}

	if stored != nil && stored.ContentHash != "" && t.opts.TrustModTime &&
		stored.LastModified.Equal(info.ModTime()) &&
		(stored.FileSize < 0 || stored.FileSize == info.Size()) {
		return &Result{Changed: false}, nil
	}

	hash, err := t.hash(ctx, path, info)
	if err != nil {
		return nil, err
	}
	current := &store.FileFingerprint{
		FilePath:     path,
		ContentHash:  hash,
		FileSize:     info.Size(),
		LastModified: info.ModTime(),
		LastChecked:  time.Now(),
	}
	changed := stored == nil || stored.ContentHash != hash
	return &Result{Changed: changed, Current: current}, nil
}

// HasChanged reports whether path differs from storedHash. An empty
// storedHash means no record exists, so the file counts as changed.
func (t *Tracker) HasChanged(ctx context.Context, path, storedHash string, storedModified time.Time) (bool, error) {
	var stored *store.FileFingerprint
	if storedHash != "" {
		stored = &store.FileFingerprint{
			FilePath:     path,
			ContentHash:  storedHash,
			LastModified: storedModified,
			FileSize:     -1,
		}
	}
	res, err := t.Check(ctx, path, stored)
	if err != nil {
		return false, err
	}
	return res.Changed, nil
}

// BatchCheck checks every path against stored (keyed by path) with bounded
// parallelism. The answer for each path is the one Check would give. Any
// per-file failure fails the batch.
func (t *Tracker) BatchCheck(ctx context.Context, paths []string, stored map[string]*store.FileFingerprint) (map[string]bool, error) {
	results, failed, err := t.BatchResults(ctx, paths, stored)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if ferr := failed[path]; ferr != nil {
			return nil, ferr
		}
	}
	changed := make(map[string]bool, len(results))
	for path, r := range results {
		changed[path] = r.Changed
	}
	return changed, nil
}

// BatchResults checks every path like BatchCheck but keeps going past
// per-file failures, which are returned keyed by path. Only cancellation
// fails the whole call.
func (t *Tracker) BatchResults(ctx context.Context, paths []string, stored map[string]*store.FileFingerprint) (map[string]*Result, map[string]error, error) {
	results := make(map[string]*Result, len(paths))
	failed := make(map[string]error)
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(t.opts.Workers)
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, err := t.Check(ctx, path, stored[path])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[path] = err
				return nil
			}
			results[path] = r
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return results, failed, nil
}

// ClearCache drops the in-memory digest cache. Persisted fingerprints are
// not affected.
func (t *Tracker) ClearCache() {
	t.cache.Purge()
}

// hash returns the digest of path, served from the cache only when mtime is
// trusted and the cached stat still matches.
func (t *Tracker) hash(ctx context.Context, path string, info os.FileInfo) (string, error) {
	mod, size := info.ModTime().UnixNano(), info.Size()
	if t.opts.TrustModTime {
		if c, ok := t.cache.Get(path); ok && c.modTime == mod && c.size == size {
			return c.hash, nil
		}
	}
	h, err := t.ComputeHash(ctx, path)
	if err != nil {
		return "", err
	}
	t.cache.Add(path, cachedDigest{modTime: mod, size: size, hash: h})
	return h, nil
}

func stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, ioErr(path, err)
	}
	if info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidPath, fmt.Sprintf("%s is a directory", path), nil)
	}
	return info, nil
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr(path, err)
	}
	return f, nil
}

func ioErr(path string, err error) error {
	code := errors.ErrCodeFileRead
	switch {
	case os.IsNotExist(err):
		code = errors.ErrCodeFileNotFound
	case os.IsPermission(err):
		code = errors.ErrCodeFilePermission
	}
	return errors.New(code, fmt.Sprintf("cannot access %s", path), err).WithDetail("path", path)
}

// ctxReader fails reads once ctx is done, so hashing a large file stops
// promptly on cancellation.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
