package config

import (
	"os"
	"time"
)

// Server captures the demo server's configuration.
type Server struct {
	Addr          string
	SessionSecret string
	ViewsDir      string
	RedisURL      string
	NonceDir      string
}

// DiscoveryTTL bounds how long discovered provider endpoints are cached.
var DiscoveryTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("GATEHOUSE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	views := os.Getenv("GATEHOUSE_VIEWS_DIR")
	if views == "" {
		views = "./views"
	}

	nonceDir := os.Getenv("GATEHOUSE_NONCE_DIR")
	if nonceDir == "" {
		nonceDir = ".openid"
	}

	return Server{
		Addr: addr,
		// No fallback: an ambient default would silently sign every
		// deployment's cookies with the same key.
		SessionSecret: os.Getenv("GATEHOUSE_SESSION_SECRET"),
		ViewsDir:      views,
		RedisURL:      os.Getenv("GATEHOUSE_REDIS_URL"),
		NonceDir:      nonceDir,
	}
}
