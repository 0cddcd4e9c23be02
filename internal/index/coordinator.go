package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Aman-CERP/semidx/internal/gitignore"
	"github.com/Aman-CERP/semidx/internal/scanner"
	"github.com/Aman-CERP/semidx/internal/watcher"
)

// CoordinatorConfig scopes which watched files reach the index.
type CoordinatorConfig struct {
	// Root is the watched project root. Include, Exclude and .gitignore
	// rules are relative to it. Empty means each synced directory.
	Root string

	Include          []string
	Exclude          []string
	MaxFileSize      int64
	RespectGitignore bool
	Metadata         map[string]any
}

// Coordinator applies debounced file events to an Indexer.
type Coordinator struct {
	indexer *Indexer
	cfg     CoordinatorConfig
	logger  *slog.Logger

	// mu serializes batches so a slow batch cannot interleave with the next.
	mu sync.Mutex

	// ignore is loaded on first use and dropped when a .gitignore changes.
	ignore *gitignore.Matcher
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(ix *Indexer, cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{indexer: ix, cfg: cfg, logger: ix.logger}
}

// Run applies batches from the watcher until ctx is done or the channel
// closes. Per-file failures are logged and do not stop the loop.
func (c *Coordinator) Run(ctx context.Context, events <-chan []watcher.FileEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			res, err := c.HandleEvents(ctx, batch)
			if err != nil {
				return err
			}
			if ferr := res.Err(); ferr != nil {
				c.logger.Warn("watch_batch_failures", slog.Int("failed", len(res.Failed)), slog.String("error", ferr.Error()))
			}
		}
	}
}

// HandleEvents applies one batch. Creates and modifies re-index the file
// (a no-op when its content is unchanged); deletes and renames remove the
// path and anything indexed below it. New directories are synced since
// files may land in them before their watch is registered. A changed
// .gitignore resyncs the whole root.
func (c *Coordinator) HandleEvents(ctx context.Context, events []watcher.FileEvent) (*SyncResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	res := &SyncResult{}

	resync := false
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.gitignoreEvent(ev) {
			c.ignore = nil
			resync = true
			continue
		}
		switch ev.Operation {
		case watcher.OpCreate, watcher.OpModify:
			if ev.IsDir {
				if ev.Operation == watcher.OpCreate {
					// The new tree may carry its own .gitignore.
					c.ignore = nil
					if err := c.syncDir(ctx, ev.Path, res); err != nil {
						return nil, err
					}
				}
				continue
			}
			if !c.accepts(ctx, ev) {
				if err := c.drop(ctx, ev.Path, res); err != nil {
					return nil, err
				}
				continue
			}
			res.Scanned++
			doc, err := c.indexer.IndexFile(ctx, ev.Path, c.cfg.Metadata)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if vanished(err) {
					if err := c.drop(ctx, ev.Path, res); err != nil {
						return nil, err
					}
					continue
				}
				res.Failed = append(res.Failed, FileError{Path: ev.Path, Err: err})
				continue
			}
			switch doc.Status {
			case StatusIndexed:
				res.Indexed++
				res.Chunks += doc.Chunks
			case StatusRemoved:
				res.Removed++
			default:
				res.Unchanged++
			}

		case watcher.OpDelete, watcher.OpRename:
			n, err := c.removeTree(ctx, ev.Path, res)
			if err != nil {
				return nil, err
			}
			res.Removed += n
		}
	}
	if resync {
		if err := c.syncDir(ctx, c.cfg.Root, res); err != nil {
			return nil, err
		}
	}

	res.Duration = time.Since(start)
	if res.Indexed+res.Removed+len(res.Failed) > 0 {
		c.logger.Info("watch_batch_applied",
			slog.Int("events", len(events)),
			slog.Int("indexed", res.Indexed),
			slog.Int("removed", res.Removed),
			slog.Int("failed", len(res.Failed)),
			slog.Duration("duration", res.Duration))
	}
	return res, nil
}

// gitignoreEvent reports whether ev touches a .gitignore that affects the
// index.
func (c *Coordinator) gitignoreEvent(ev watcher.FileEvent) bool {
	return c.cfg.RespectGitignore && c.cfg.Root != "" && !ev.IsDir &&
		filepath.Base(ev.Path) == gitignore.FileName
}

// accepts applies include/exclude and .gitignore rules and rejects files
// that vanished, turned into symlinks or grew past the size limit since the
// event.
func (c *Coordinator) accepts(ctx context.Context, ev watcher.FileEvent) bool {
	if !scanner.Matches(ev.Rel, c.cfg.Include, c.cfg.Exclude) {
		return false
	}
	if c.cfg.RespectGitignore && c.cfg.Root != "" {
		if c.ignore == nil {
			m, err := scanner.LoadGitignore(ctx, c.cfg.Root, c.cfg.Exclude)
			if err != nil {
				c.logger.Warn("gitignore_load_failed", slog.String("root", c.cfg.Root), slog.String("error", err.Error()))
				m = gitignore.New()
			}
			c.ignore = m
		}
		if c.ignore.Match(ev.Rel, false) {
			return false
		}
	}
	info, err := os.Lstat(ev.Path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	limit := c.cfg.MaxFileSize
	if limit <= 0 {
		limit = scanner.DefaultMaxFileSize
	}
	return info.Size() <= limit
}

// drop removes a file that no longer qualifies for the index, if it was
// indexed.
func (c *Coordinator) drop(ctx context.Context, path string, res *SyncResult) error {
	key, err := normalizePath(path)
	if err != nil {
		res.Failed = append(res.Failed, FileError{Path: path, Err: err})
		return nil
	}
	fp, err := c.indexer.store.GetFingerprint(ctx, key)
	if err == nil && fp != nil {
		err = c.indexer.RemoveFile(ctx, key)
		if err == nil {
			res.Removed++
			return nil
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res.Failed = append(res.Failed, FileError{Path: key, Err: err})
	}
	return nil
}

func (c *Coordinator) syncDir(ctx context.Context, dir string, res *SyncResult) error {
	sub, err := c.indexer.SyncDirectory(ctx, dir, SyncOptions{
		Include:          c.cfg.Include,
		Exclude:          c.cfg.Exclude,
		MaxFileSize:      c.cfg.MaxFileSize,
		MatchRoot:        c.cfg.Root,
		RespectGitignore: c.cfg.RespectGitignore,
		Metadata:         c.cfg.Metadata,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res.Failed = append(res.Failed, FileError{Path: dir, Err: err})
		return nil
	}
	res.Scanned += sub.Scanned
	res.Indexed += sub.Indexed
	res.Unchanged += sub.Unchanged
	res.Removed += sub.Removed
	res.Chunks += sub.Chunks
	res.Failed = append(res.Failed, sub.Failed...)
	return nil
}

// removeTree removes path and, when it was a directory, every indexed file
// below it. The event no longer says which it was.
func (c *Coordinator) removeTree(ctx context.Context, path string, res *SyncResult) (int, error) {
	path = filepath.Clean(path)
	files, err := c.indexer.IndexedFiles(ctx)
	if err != nil {
		return 0, err
	}
	var targets []string
	for _, f := range files {
		if within(path, f) {
			targets = append(targets, f)
		}
	}
	sort.Strings(targets)

	removed := 0
	for _, f := range targets {
		if err := c.indexer.RemoveFile(ctx, f); err != nil {
			if ctx.Err() != nil {
				return removed, ctx.Err()
			}
			res.Failed = append(res.Failed, FileError{Path: f, Err: err})
			continue
		}
		removed++
	}
	return removed, nil
}
