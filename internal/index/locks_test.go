package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLocks(t *testing.T) {
	locks := newFileLocks()
	ctx := context.Background()

	release, err := locks.acquire(ctx, "/a")
	require.NoError(t, err)

	t.Run("other path is free", func(t *testing.T) {
		r, err := locks.acquire(ctx, "/b")
		require.NoError(t, err)
		r()
	})

	t.Run("same path waits", func(t *testing.T) {
		tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := locks.acquire(tctx, "/a")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("released path is handed over", func(t *testing.T) {
		got := make(chan struct{})
		go func() {
			r, err := locks.acquire(ctx, "/a")
			if assert.NoError(t, err) {
				r()
			}
			close(got)
		}()
		release()
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatal("waiter never acquired the lock")
		}
	})

	assert.Zero(t, locks.held())
}
