package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFilesystemNonceStore(t *testing.T) {
	t.Run("accepts a fresh nonce exactly once", func(t *testing.T) {
		store, err := NewFilesystemNonceStore(t.TempDir())
		require.NoError(t, err)

		nonce := freshNonce("fs-claim")
		require.NoError(t, store.Accept("https://op.example.com", nonce))
		require.ErrorIs(t, store.Accept("https://op.example.com", nonce), ErrNonceUsed)
	})

	t.Run("claims survive across store instances sharing a directory", func(t *testing.T) {
		dir := t.TempDir()
		first, err := NewFilesystemNonceStore(dir)
		require.NoError(t, err)
		second, err := NewFilesystemNonceStore(dir)
		require.NoError(t, err)

		nonce := freshNonce("fs-shared")
		require.NoError(t, first.Accept("https://op.example.com", nonce))
		require.ErrorIs(t, second.Accept("https://op.example.com", nonce), ErrNonceUsed)
	})

	t.Run("rejects stale nonces without touching the filesystem claim", func(t *testing.T) {
		store, err := NewFilesystemNonceStore(t.TempDir())
		require.NoError(t, err)

		err = store.Accept("https://op.example.com", "2001-01-01T00:00:00Zancient")
		require.ErrorIs(t, err, ErrNonceStale)
	})

	t.Run("rejects future-dated nonces beyond the skew bound", func(t *testing.T) {
		store, err := NewFilesystemNonceStore(t.TempDir())
		require.NoError(t, err)

		base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return base }

		future := base.Add(maxNonceSkew + time.Second).Format(time.RFC3339) + "ahead"
		require.ErrorIs(t, store.Accept("https://op.example.com", future), ErrNonceStale)
	})

	t.Run("exactly one concurrent claim wins", func(t *testing.T) {
		store, err := NewFilesystemNonceStore(t.TempDir())
		require.NoError(t, err)

		nonce := freshNonce("fs-race")
		const claimers = 16
		var wg sync.WaitGroup
		results := make(chan error, claimers)
		for i := 0; i < claimers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- store.Accept("https://op.example.com", nonce)
			}()
		}
		wg.Wait()
		close(results)

		accepted := 0
		for err := range results {
			if err == nil {
				accepted++
			}
		}
		require.Equal(t, 1, accepted)
	})
}
