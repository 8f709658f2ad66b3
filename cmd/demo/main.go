package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatehouse"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/httpserver"
	"gatehouse/internal/platform/logger"
	"gatehouse/internal/platform/middleware"
	platformredis "gatehouse/internal/platform/redis"
	"gatehouse/openid"
	"gatehouse/openid/store"
)

// main wires the demo application behind the authentication middleware and
// keeps the server lifecycle small.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if cfg.SessionSecret == "" {
		log.Error("GATEHOUSE_SESSION_SECRET must be set; refusing to start with an unsigned session cookie")
		os.Exit(1)
	}

	users := newUserStore()
	if err := users.Register("demo", "demo-password"); err != nil {
		log.Error("failed to seed demo user", "error", err.Error())
		os.Exit(1)
	}

	consumer, err := buildConsumer(cfg, log)
	if err != nil {
		log.Error("failed to build openid consumer", "error", err.Error())
		os.Exit(1)
	}

	app := chi.NewRouter()
	auth, err := gatehouse.New(app, gatehouse.Options{
		Secret:   []byte(cfg.SessionSecret),
		Login:    users,
		Signup:   users.Signup,
		ViewsDir: cfg.ViewsDir,
		Consumer: consumer,
		Logger:   log,
	})
	if err != nil {
		log.Error("invalid auth configuration", "error", err.Error())
		os.Exit(1)
	}
	app.With(auth.RequireAuth).Get("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "hello, %s\n", auth.CurrentUser(r))
	})

	root := chi.NewRouter()
	root.Use(middleware.Recovery(log))
	root.Use(middleware.RequestID)
	root.Use(middleware.Logger(log))
	root.Handle("/metrics", promhttp.Handler())
	root.Mount("/", auth)

	srv := httpserver.New(cfg.Addr, root)

	log.Info("starting gatehouse demo", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}

// buildConsumer picks handshake stores by configuration: Redis when
// configured (required for multi-instance deployments), otherwise a
// filesystem nonce store plus in-memory discovery cache.
func buildConsumer(cfg config.Server, log *slog.Logger) (*openid.Consumer, error) {
	client, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	var (
		nonces    store.NonceStore
		discovery store.DiscoveryCache
	)
	if client != nil {
		nonces = store.NewRedisNonceStore(client.Client)
		discovery = store.NewRedisDiscoveryCache(client.Client, config.DiscoveryTTL)
	} else {
		fsNonces, err := store.NewFilesystemNonceStore(cfg.NonceDir)
		if err != nil {
			return nil, err
		}
		nonces = fsNonces
		discovery = store.NewInMemoryDiscoveryCache(config.DiscoveryTTL)
	}

	return openid.NewConsumer(openid.NewEngine(discovery, nonces), log), nil
}
