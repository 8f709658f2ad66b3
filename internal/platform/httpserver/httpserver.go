package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server tuned for short, browser-driven login flows:
// requests are small form posts and redirects, so read and write deadlines
// stay tight, while idle keep-alive connections are allowed to linger through
// a provider round trip.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
