package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/semidx/internal/errors"
	"github.com/Aman-CERP/semidx/internal/scanner"
)

// Watcher watches a directory tree recursively.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	errs      chan error
	opts      Options
	logger    *slog.Logger

	mu      sync.RWMutex
	root    string
	stopped bool
}

// New creates a watcher. Call Start to begin watching.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.IOError("create file watcher", err)
	}
	return &Watcher{
		fsw:       fsw,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.EventBufferSize),
		errs:      make(chan error, 16),
		opts:      opts,
		logger:    slog.Default(),
	}, nil
}

// Start is Watch followed by Run.
func (w *Watcher) Start(ctx context.Context, root string) error {
	if err := w.Watch(root); err != nil {
		return err
	}
	return w.Run(ctx)
}

// Watch registers every directory under root. Changes made after it
// returns are reported.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errors.New(errors.ErrCodeInvalidPath, "resolve watch root", err)
	}
	w.mu.Lock()
	w.root = absRoot
	w.mu.Unlock()

	if err := w.addRecursive(absRoot); err != nil {
		return err
	}
	w.logger.Info("watch_started", slog.String("root", absRoot))
	return nil
}

// Run processes events until ctx is cancelled or Stop is called. It blocks.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	root := w.Root()
	rel, err := filepath.Rel(root, ev.Name)
	if err != nil || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}
	if isDir && scanner.ExcludedDir(rel, w.opts.ExcludePatterns) {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
		if isDir {
			// Files created before the watch lands are picked up by the
			// caller's directory sync.
			if err := w.addRecursive(ev.Name); err != nil {
				w.emitError(err)
			}
		}
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return // chmod
	}

	w.debouncer.Add(FileEvent{
		Path:      ev.Name,
		Rel:       rel,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(w.Root(), p); relErr == nil && rel != "." &&
			scanner.ExcludedDir(filepath.ToSlash(rel), w.opts.ExcludePatterns) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return errors.IOError("watch "+p, err)
		}
		return nil
	})
}

func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errs <- err:
	default:
		w.logger.Warn("watch_error_dropped", slog.String("error", err.Error()))
	}
}

// Events returns debounced event batches. The channel closes on Stop.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Errors returns non-fatal watcher errors. The channel closes on Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Root returns the absolute watched root.
func (w *Watcher) Root() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.root
}

// Stop releases the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	w.debouncer.Stop()
	err := w.fsw.Close()
	close(w.errs)
	return err
}
