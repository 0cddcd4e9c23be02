package index

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/scanner"
	"github.com/Aman-CERP/semidx/internal/store"
)

// DefaultSyncWorkers is the number of files indexed concurrently by
// SyncDirectory.
const DefaultSyncWorkers = 2

// SyncOptions configures SyncDirectory.
type SyncOptions struct {
	Include     []string
	Exclude     []string
	MaxFileSize int64
	Workers     int

	// MatchRoot is the directory Include, Exclude and .gitignore rules are
	// relative to. Empty means the synced directory.
	MatchRoot string

	// RespectGitignore skips files ignored by .gitignore.
	RespectGitignore bool

	// Metadata is attached to every chunk written by the sync.
	Metadata map[string]any

	// Progress, when set, is called after each changed file is processed
	// with the number done and the number of changed files. Calls are
	// serialized.
	Progress func(done, total int)
}

// FileError is a per-file failure that did not stop the sync.
type FileError struct {
	Path string
	Err  error
}

// SyncResult summarizes one directory sync.
type SyncResult struct {
	Root      string
	Scanned   int
	Indexed   int
	Unchanged int
	Removed   int
	Chunks    int
	Failed    []FileError
	Duration  time.Duration
}

// Err joins the per-file failures, or returns nil.
func (r *SyncResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for k, f := range r.Failed {
		errs[k] = fmt.Errorf("%s: %w", f.Path, f.Err)
	}
	return stderrors.Join(errs...)
}

// SyncDirectory brings the index in line with the files under root:
// changed and new files are indexed, unchanged ones skipped, and indexed
// files under root that are gone or no longer match are removed. Files are
// keyed by absolute path.
//
// A failing file is recorded in the result and the sync continues. Only
// cancellation and failures that affect the whole run are returned as errors.
func (i *Indexer) SyncDirectory(ctx context.Context, root string, opts SyncOptions) (*SyncResult, error) {
	start := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidPath, "resolve root", err).WithDetail("root", root)
	}
	if err := scanner.ValidatePatterns(opts.Include, opts.Exclude); err != nil {
		return nil, err
	}
	if err := validateMetadata(opts.Metadata); err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultSyncWorkers
	}

	files, err := i.scanner.Collect(ctx, &scanner.ScanOptions{
		RootDir:          absRoot,
		IncludePatterns:  opts.Include,
		ExcludePatterns:  opts.Exclude,
		MaxFileSize:      opts.MaxFileSize,
		MatchRoot:        opts.MatchRoot,
		RespectGitignore: opts.RespectGitignore,
	})
	if err != nil {
		return nil, err
	}

	res := &SyncResult{Root: absRoot, Scanned: len(files)}
	paths := make([]string, len(files))
	seen := make(map[string]struct{}, len(files))
	for k, f := range files {
		paths[k] = filepath.Clean(f.AbsPath)
		seen[paths[k]] = struct{}{}
	}

	stored, err := i.store.Fingerprints(ctx, nil)
	if err != nil {
		return nil, err
	}
	todo, err := i.changedFiles(ctx, paths, stored, seen, res)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	progress := func() {
		done++
		if opts.Progress != nil {
			opts.Progress(done, len(todo))
		}
	}
	g.SetLimit(workers)
	for _, p := range todo {
		g.Go(func() error {
			doc, err := i.IndexFile(ctx, p, opts.Metadata)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				mu.Lock()
				defer mu.Unlock()
				progress()
				if vanished(err) {
					delete(seen, p)
					return nil
				}
				i.logger.Warn("sync_file_failed", slog.String("path", p), slog.String("error", err.Error()))
				res.Failed = append(res.Failed, FileError{Path: p, Err: err})
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			progress()
			switch doc.Status {
			case StatusIndexed:
				res.Indexed++
				res.Chunks += doc.Chunks
			case StatusRemoved:
				res.Removed++
			case StatusUnchanged:
				res.Unchanged++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for p := range stored {
		if _, ok := seen[p]; ok || !within(absRoot, p) {
			continue
		}
		if err := i.RemoveFile(ctx, p); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.Failed = append(res.Failed, FileError{Path: p, Err: err})
			continue
		}
		res.Removed++
	}

	res.Duration = time.Since(start)
	i.logger.Info("sync_completed",
		slog.String("root", absRoot),
		slog.Int("scanned", res.Scanned),
		slog.Int("indexed", res.Indexed),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("removed", res.Removed),
		slog.Int("failed", len(res.Failed)),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// changedFiles returns the paths whose content differs from stored. Files
// that could not be checked are recorded in res.Failed; files that vanished
// since the scan are dropped from seen so their stale chunks are removed.
func (i *Indexer) changedFiles(ctx context.Context, paths []string, stored map[string]*store.FileFingerprint,
	seen map[string]struct{}, res *SyncResult) ([]string, error) {
	results, failed, err := i.tracker.BatchResults(ctx, paths, stored)
	if err != nil {
		return nil, err
	}
	var todo []string
	for _, p := range paths {
		if ferr, ok := failed[p]; ok {
			if vanished(ferr) {
				delete(seen, p)
				continue
			}
			i.logger.Warn("sync_check_failed", slog.String("path", p), slog.String("error", ferr.Error()))
			res.Failed = append(res.Failed, FileError{Path: p, Err: ferr})
			continue
		}
		if results[p].Changed {
			todo = append(todo, p)
		} else {
			res.Unchanged++
		}
	}
	return todo, nil
}

// vanished reports whether err means the file no longer exists.
func vanished(err error) bool {
	return errors.GetCode(err) == errors.ErrCodeFileNotFound
}

// within reports whether path is root or below it.
func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}
