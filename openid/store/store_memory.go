package store

import (
	"sync"
	"time"

	openidgo "github.com/yohcop/openid-go"
)

// In-memory stores keep single-process deployments and tests lightweight.
// They intentionally favor clarity over performance.

// InMemoryNonceStore tracks claimed nonces per provider endpoint.
type InMemoryNonceStore struct {
	mu     sync.Mutex
	seen   map[string]map[string]time.Time
	now    func() time.Time
	sweeps int
}

// NewInMemoryNonceStore constructs an empty nonce store.
func NewInMemoryNonceStore() *InMemoryNonceStore {
	return &InMemoryNonceStore{
		seen: make(map[string]map[string]time.Time),
		now:  time.Now,
	}
}

// Accept claims the nonce or fails. The check and the insert happen under one
// lock so concurrent callbacks for the same nonce cannot both succeed.
func (s *InMemoryNonceStore) Accept(endpoint, nonce string) error {
	now := s.now()
	if err := checkNonceAge(nonce, now); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nonces, ok := s.seen[endpoint]
	if !ok {
		nonces = make(map[string]time.Time)
		s.seen[endpoint] = nonces
	}
	if _, used := nonces[nonce]; used {
		return ErrNonceUsed
	}
	nonces[nonce] = now

	s.sweeps++
	if s.sweeps >= 100 {
		s.sweeps = 0
		s.pruneLocked(now)
	}
	return nil
}

// pruneLocked drops entries older than the retention window; the age check
// already rejects their nonces, so forgetting them is safe.
func (s *InMemoryNonceStore) pruneLocked(now time.Time) {
	for endpoint, nonces := range s.seen {
		for nonce, claimed := range nonces {
			if now.Sub(claimed) > nonceRetention {
				delete(nonces, nonce)
			}
		}
		if len(nonces) == 0 {
			delete(s.seen, endpoint)
		}
	}
}

type cachedDiscovery struct {
	info    Discovery
	expires time.Time
}

// InMemoryDiscoveryCache caches discovered endpoints with a TTL.
type InMemoryDiscoveryCache struct {
	mu      sync.RWMutex
	entries map[string]cachedDiscovery
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDiscoveryCache constructs a cache with the given entry TTL.
func NewInMemoryDiscoveryCache(ttl time.Duration) *InMemoryDiscoveryCache {
	return &InMemoryDiscoveryCache{
		entries: make(map[string]cachedDiscovery),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *InMemoryDiscoveryCache) Put(id string, info openidgo.DiscoveredInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = cachedDiscovery{
		info: Discovery{
			Endpoint: info.OpEndpoint(),
			LocalID:  info.OpLocalID(),
			Claimed:  info.ClaimedID(),
		},
		expires: c.now().Add(c.ttl),
	}
}

// Get returns nil on a miss or expired entry; the engine re-discovers.
func (c *InMemoryDiscoveryCache) Get(id string) openidgo.DiscoveredInfo {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	if c.now().After(entry.expires) {
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return nil
	}
	return entry.info
}
