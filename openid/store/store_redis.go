package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	openidgo "github.com/yohcop/openid-go"
)

var nonceClaimDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "gatehouse_nonce_claim_duration_ms",
	Help:    "Latency of nonce claim attempts in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const (
	nonceKeyPrefix     = "gatehouse:nonce:"
	discoveryKeyPrefix = "gatehouse:discovery:"

	redisOpTimeout = 3 * time.Second
)

// RedisNonceStore is the production-recommended nonce store for deployments
// where multiple instances answer provider callbacks. SET NX gives the
// atomic claim-or-fail primitive; Redis expiry enforces retention.
type RedisNonceStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisNonceStore constructs a Redis-backed nonce store.
func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client, now: time.Now}
}

// Accept claims the nonce or fails. Infrastructure errors are returned as-is
// so callers reject the response rather than treating it as unclaimed.
func (s *RedisNonceStore) Accept(endpoint, nonce string) error {
	start := time.Now()
	defer func() {
		nonceClaimDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if err := checkNonceAge(nonce, s.now()); err != nil {
		return err
	}

	// The protocol engine's store contract carries no context; bound the
	// call locally so a slow Redis cannot hold a callback open.
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	key := nonceKeyPrefix + endpoint + "\x00" + nonce
	claimed, err := s.client.SetNX(ctx, key, "1", nonceRetention).Result()
	if err != nil {
		return fmt.Errorf("claim nonce: %w", err)
	}
	if !claimed {
		return ErrNonceUsed
	}
	return nil
}

// RedisDiscoveryCache shares discovered endpoint data across instances so the
// callback leg can land on a different instance than the initiate leg.
type RedisDiscoveryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDiscoveryCache constructs a cache with the given entry TTL.
func NewRedisDiscoveryCache(client *redis.Client, ttl time.Duration) *RedisDiscoveryCache {
	return &RedisDiscoveryCache{client: client, ttl: ttl}
}

func (c *RedisDiscoveryCache) Put(id string, info openidgo.DiscoveredInfo) {
	payload, err := json.Marshal(Discovery{
		Endpoint: info.OpEndpoint(),
		LocalID:  info.OpLocalID(),
		Claimed:  info.ClaimedID(),
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	_ = c.client.Set(ctx, discoveryKeyPrefix+id, payload, c.ttl).Err()
}

// Get returns nil on a miss or any infrastructure error; the engine then
// re-discovers instead of trusting stale data.
func (c *RedisDiscoveryCache) Get(id string) openidgo.DiscoveredInfo {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	payload, err := c.client.Get(ctx, discoveryKeyPrefix+id).Bytes()
	if err != nil {
		return nil
	}
	var d Discovery
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil
	}
	return d
}
