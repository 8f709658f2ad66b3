package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults without a session secret fallback", func(t *testing.T) {
		t.Setenv("GATEHOUSE_ADDR", "")
		t.Setenv("GATEHOUSE_SESSION_SECRET", "")
		t.Setenv("GATEHOUSE_VIEWS_DIR", "")
		t.Setenv("GATEHOUSE_NONCE_DIR", "")
		t.Setenv("GATEHOUSE_REDIS_URL", "")

		cfg := FromEnv()
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, "./views", cfg.ViewsDir)
		assert.Equal(t, ".openid", cfg.NonceDir)
		// The secret has no default; callers must refuse to run without one.
		assert.Empty(t, cfg.SessionSecret)
	})

	t.Run("reads configured values", func(t *testing.T) {
		t.Setenv("GATEHOUSE_ADDR", ":9090")
		t.Setenv("GATEHOUSE_SESSION_SECRET", "s3cret")
		t.Setenv("GATEHOUSE_VIEWS_DIR", "/srv/views")
		t.Setenv("GATEHOUSE_NONCE_DIR", "/var/run/nonces")
		t.Setenv("GATEHOUSE_REDIS_URL", "redis://localhost:6379/0")

		cfg := FromEnv()
		assert.Equal(t, ":9090", cfg.Addr)
		assert.Equal(t, "s3cret", cfg.SessionSecret)
		assert.Equal(t, "/srv/views", cfg.ViewsDir)
		assert.Equal(t, "/var/run/nonces", cfg.NonceDir)
		assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	})
}
