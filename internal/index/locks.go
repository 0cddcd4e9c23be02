package index

import (
	"context"
	"sync"
)

// fileLocks serializes work on one path while letting different paths run
// concurrently. Waiting honours ctx.
type fileLocks struct {
	mu    sync.Mutex
	files map[string]*fileLock
}

type fileLock struct {
	sem  chan struct{}
	refs int
}

func newFileLocks() *fileLocks {
	return &fileLocks{files: make(map[string]*fileLock)}
}

func (l *fileLocks) acquire(ctx context.Context, path string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	fl, ok := l.files[path]
	if !ok {
		fl = &fileLock{sem: make(chan struct{}, 1)}
		l.files[path] = fl
	}
	fl.refs++
	l.mu.Unlock()

	select {
	case fl.sem <- struct{}{}:
		return func() {
			<-fl.sem
			l.unref(path, fl)
		}, nil
	case <-ctx.Done():
		l.unref(path, fl)
		return nil, ctx.Err()
	}
}

func (l *fileLocks) unref(path string, fl *fileLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fl.refs--
	if fl.refs == 0 {
		delete(l.files, path)
	}
}

// held returns the number of paths with a holder or waiter.
func (l *fileLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.files)
}
