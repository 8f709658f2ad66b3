// Package store provides the durable key/value backends the OpenID handshake
// needs: replay-protected nonce claims and a discovery cache. Implementations
// satisfy the protocol engine's DiscoveryCache and NonceStore contracts
// directly, so the layout of persisted data stays opaque to callers.
package store

import (
	"errors"
	"time"

	openidgo "github.com/yohcop/openid-go"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNonceUsed when a (endpoint, nonce) pair was already claimed
// - Return ErrNonceStale when a nonce is outside the acceptance window
// - Return wrapped errors with context for infrastructure failures
// Any non-nil error from Accept means the response must be rejected.
var (
	ErrNonceUsed  = errors.New("nonce already used")
	ErrNonceStale = errors.New("nonce outside acceptance window")
)

// MaxNonceAge bounds how long a provider-issued nonce stays claimable.
const MaxNonceAge = 60 * time.Second

// maxNonceSkew bounds how far ahead of the local clock a nonce timestamp may
// be. A future-dated nonce would stay inside its own acceptance window after
// the retention sweep forgot its claim, making the claim repeatable.
const maxNonceSkew = 10 * time.Second

// nonceRetention is how long claimed nonces must be remembered: the
// acceptance window plus the tolerated skew, so a claim can never be
// forgotten while its nonce is still claimable.
const nonceRetention = MaxNonceAge + maxNonceSkew

// NonceStore claims provider nonces. Accept must be atomic: for a given
// (endpoint, nonce) pair exactly one concurrent caller may see nil, every
// other caller gets ErrNonceUsed. A separate read-then-write is not an
// acceptable implementation.
type NonceStore interface {
	Accept(endpoint, nonce string) error
}

// DiscoveryCache caches discovered endpoint information between the initiate
// and callback legs of a handshake. A miss returns nil and the engine
// re-discovers, so cache failures degrade to extra discovery round trips
// rather than accepting unverified data.
type DiscoveryCache interface {
	Put(id string, info openidgo.DiscoveredInfo)
	Get(id string) openidgo.DiscoveredInfo
}

// Discovery is the concrete discovered-info record cached by this package.
type Discovery struct {
	Endpoint string `json:"op_endpoint"`
	LocalID  string `json:"op_local_id"`
	Claimed  string `json:"claimed_id"`
}

func (d Discovery) OpEndpoint() string { return d.Endpoint }
func (d Discovery) OpLocalID() string  { return d.LocalID }
func (d Discovery) ClaimedID() string  { return d.Claimed }

// nonceTime extracts the issuance timestamp from an OpenID 2.0 response
// nonce. The wire format is an RFC 3339 UTC timestamp followed by random
// ASCII characters.
func nonceTime(nonce string) (time.Time, error) {
	if len(nonce) < 20 || len(nonce) > 256 {
		return time.Time{}, errors.New("invalid nonce length")
	}
	return time.Parse(time.RFC3339, nonce[0:20])
}

// checkNonceAge rejects nonces issued outside the acceptance window, in
// either direction, before any store lookup happens. Entries older than the
// retention window can then be pruned safely.
func checkNonceAge(nonce string, now time.Time) error {
	ts, err := nonceTime(nonce)
	if err != nil {
		return err
	}
	if now.Sub(ts) > MaxNonceAge || ts.Sub(now) > maxNonceSkew {
		return ErrNonceStale
	}
	return nil
}
