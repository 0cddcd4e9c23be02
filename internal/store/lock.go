package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// WriteLock is a cross-process lock held by processes that mutate an index
// database. It lives at <db>.lock.
type WriteLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewWriteLock returns the lock guarding the database at dbPath.
func NewWriteLock(dbPath string) *WriteLock {
	path := dbPath + ".lock"
	return &WriteLock{path: path, flock: flock.New(path)}
}

// Lock blocks until the lock is acquired or ctx is done.
func (l *WriteLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.IOError("create lock directory", err)
	}
	ok, err := l.flock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.New(errors.ErrCodeLockHeld, fmt.Sprintf("acquire %s", l.path), err)
	}
	if !ok {
		return errors.New(errors.ErrCodeLockHeld, fmt.Sprintf("acquire %s", l.path), nil)
	}
	l.locked = true
	return nil
}

// TryLock acquires the lock without waiting. It reports an ErrCodeLockHeld
// error when another process holds it.
func (l *WriteLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.IOError("create lock directory", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return errors.New(errors.ErrCodeLockHeld, fmt.Sprintf("acquire %s", l.path), err)
	}
	if !ok {
		return errors.New(errors.ErrCodeLockHeld, "index is being written by another process", nil).
			WithDetail("lock", l.path)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Calling it when not locked is a no-op.
func (l *WriteLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return errors.IOError(fmt.Sprintf("release %s", l.path), err)
	}
	return nil
}
