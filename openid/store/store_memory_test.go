package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type NonceStoreSuite struct {
	suite.Suite
	store *InMemoryNonceStore
}

func (s *NonceStoreSuite) SetupTest() {
	s.store = NewInMemoryNonceStore()
}

func TestNonceStoreSuite(t *testing.T) {
	suite.Run(t, new(NonceStoreSuite))
}

func freshNonce(salt string) string {
	return time.Now().UTC().Format(time.RFC3339) + salt
}

func (s *NonceStoreSuite) TestClaimOnce() {
	s.Run("accepts a fresh nonce exactly once", func() {
		nonce := freshNonce("abc123")

		err := s.store.Accept("https://op.example.com", nonce)
		s.Require().NoError(err)

		err = s.store.Accept("https://op.example.com", nonce)
		s.Require().ErrorIs(err, ErrNonceUsed)
	})

	s.Run("same nonce under different endpoints is independent", func() {
		nonce := freshNonce("xyz789")

		s.Require().NoError(s.store.Accept("https://op-a.example.com", nonce))
		s.Require().NoError(s.store.Accept("https://op-b.example.com", nonce))
	})
}

func (s *NonceStoreSuite) TestRejectsStaleAndMalformedNonces() {
	s.Run("rejects a nonce outside the acceptance window", func() {
		stale := time.Now().UTC().Add(-2 * MaxNonceAge).Format(time.RFC3339) + "old"
		err := s.store.Accept("https://op.example.com", stale)
		s.Require().ErrorIs(err, ErrNonceStale)
	})

	s.Run("rejects a nonce without a parseable timestamp", func() {
		err := s.store.Accept("https://op.example.com", "not-a-timestamp-at-all")
		s.Require().Error(err)
	})

	s.Run("rejects a truncated nonce", func() {
		err := s.store.Accept("https://op.example.com", "short")
		s.Require().Error(err)
	})

	s.Run("rejects a nonce timestamped beyond the skew bound", func() {
		base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
		s.store.now = func() time.Time { return base }

		future := base.Add(maxNonceSkew + time.Second).Format(time.RFC3339) + "future"
		err := s.store.Accept("https://op.example.com", future)
		s.Require().ErrorIs(err, ErrNonceStale)
	})

	s.Run("tolerates skew inside the bound", func() {
		base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
		s.store.now = func() time.Time { return base }

		skewed := base.Add(maxNonceSkew - time.Second).Format(time.RFC3339) + "skewed"
		s.Require().NoError(s.store.Accept("https://op.example.com", skewed))
	})
}

// TestClaimOutlivesPrune covers the retention invariant: a claim must survive
// pruning for as long as its nonce stays inside the acceptance window, even
// when the nonce was issued by a clock running ahead of ours.
func (s *NonceStoreSuite) TestClaimOutlivesPrune() {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	current := base
	s.store.now = func() time.Time { return current }

	nonce := base.Add(maxNonceSkew).Format(time.RFC3339) + "ahead"
	s.Require().NoError(s.store.Accept("https://op.example.com", nonce))

	// The claim is now older than the acceptance window, but the nonce itself
	// is not; a prune keyed on MaxNonceAge alone would forget it here.
	current = base.Add(MaxNonceAge + time.Second)
	s.store.mu.Lock()
	s.store.pruneLocked(current)
	s.store.mu.Unlock()

	err := s.store.Accept("https://op.example.com", nonce)
	s.Require().ErrorIs(err, ErrNonceUsed)
}

// TestConcurrentClaims covers the replay-protection race: when callbacks for
// the same nonce arrive concurrently, exactly one may win.
func (s *NonceStoreSuite) TestConcurrentClaims() {
	nonce := freshNonce("race")

	const claimers = 16
	var wg sync.WaitGroup
	results := make(chan error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.store.Accept("https://op.example.com", nonce)
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
		} else {
			s.Require().ErrorIs(err, ErrNonceUsed)
		}
	}
	s.Equal(1, accepted)
}

func TestInMemoryDiscoveryCache(t *testing.T) {
	t.Run("round trips a discovered endpoint", func(t *testing.T) {
		cache := NewInMemoryDiscoveryCache(time.Minute)
		cache.Put("https://user.example.com", Discovery{
			Endpoint: "https://op.example.com/auth",
			LocalID:  "https://op.example.com/user",
			Claimed:  "https://user.example.com",
		})

		got := cache.Get("https://user.example.com")
		if got == nil {
			t.Fatal("expected a cache hit")
		}
		if got.OpEndpoint() != "https://op.example.com/auth" {
			t.Errorf("unexpected endpoint %q", got.OpEndpoint())
		}
	})

	t.Run("misses return nil", func(t *testing.T) {
		cache := NewInMemoryDiscoveryCache(time.Minute)
		if got := cache.Get("https://nobody.example.com"); got != nil {
			t.Fatalf("expected nil, got %v", got)
		}
	})

	t.Run("expired entries are dropped", func(t *testing.T) {
		cache := NewInMemoryDiscoveryCache(-time.Second)
		cache.Put("https://user.example.com", Discovery{Endpoint: "https://op.example.com"})
		if got := cache.Get("https://user.example.com"); got != nil {
			t.Fatalf("expected expired entry to miss, got %v", got)
		}
	})
}
