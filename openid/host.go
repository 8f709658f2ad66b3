package openid

import "net/http"

// CallbackPath is where the identity provider redirects the user's agent
// after authenticating. The orchestrator serves it; the consumer embeds it
// into the initiate redirect.
const CallbackPath = "/openid/authenticate"

// Realm returns the externally visible scheme://host for a request. The same
// derivation runs at initiate and callback time; if a different physical
// endpoint answers the callback the realms disagree and verification fails.
// Forwarded headers win over the socket-level values so deployments behind a
// reverse proxy bind to the public origin, not the internal one.
func Realm(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host
}

// ReturnURL is the exact callback URL for a request's origin.
func ReturnURL(r *http.Request) string {
	return Realm(r) + CallbackPath
}
