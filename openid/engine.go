package openid

import (
	openidgo "github.com/yohcop/openid-go"

	"gatehouse/openid/store"
)

// Engine is the seam to the external OpenID 2.0 protocol implementation.
// Discovery, association management and signature verification all live
// behind it; the consumer only classifies results and binds URLs.
type Engine interface {
	// RedirectURL discovers the identifier's provider and returns the URL to
	// send the user's agent to, with returnURL embedded as the callback.
	RedirectURL(claimedID, returnURL, realm string) (string, error)

	// Verify checks a provider response. requestURL is the full callback URL
	// including the query string. Returns the verified identity URL.
	Verify(requestURL string) (string, error)
}

type stdEngine struct {
	discovery store.DiscoveryCache
	nonces    store.NonceStore
}

// NewEngine wraps the openid-go protocol implementation with the given
// handshake stores.
func NewEngine(discovery store.DiscoveryCache, nonces store.NonceStore) Engine {
	return &stdEngine{discovery: discovery, nonces: nonces}
}

func (e *stdEngine) RedirectURL(claimedID, returnURL, realm string) (string, error) {
	return openidgo.RedirectURL(claimedID, returnURL, realm)
}

func (e *stdEngine) Verify(requestURL string) (string, error) {
	return openidgo.Verify(requestURL, e.discovery, e.nonces)
}
