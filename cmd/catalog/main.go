// Command catalog serves the silver dataset manifests recorded by the
// refiner.
//
// The catalog serves an HTTP API on port 8090 (configurable) providing:
//   - GET /datasets - List the datasets with a manifest
//   - GET /datasets/latest?dataset=<name> - Retrieve the latest manifest
//   - GET /healthz - Health check endpoint (pings Redis when used)
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	catalog -storage=redis -redis-addr=redis:6379 -stale-after=2h
//
// Environment variables:
//
//	CATALOG_LISTEN - HTTP listen address (default: :8090)
//	STORAGE        - Manifest store: memory, redis (default: redis)
//	REDIS_ADDR     - Redis server address (default: localhost:6379)
//	STALE_AFTER    - Flag manifests older than this as stale (default: 0, off)
//	TLS_ENABLED    - Serve HTTPS with client certificate verification
//	LOG_LEVEL      - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT     - Logging format: text, json (default: text)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/HatiCode/silverline/cmd/catalog/config"
	"github.com/HatiCode/silverline/cmd/catalog/router"
	"github.com/HatiCode/silverline/pkg/httpx"
	"github.com/HatiCode/silverline/pkg/logger"
	"github.com/HatiCode/silverline/pkg/storage"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New("catalog", cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	log.Info("starting silverline catalog",
		"version", version,
		"listen", cfg.Listen,
		"storage", cfg.Storage,
		"tls_enabled", cfg.TLS.Enabled,
	)

	if err := run(cfg, log); err != nil {
		log.Error("catalog failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(cfg *config.Config, log *slog.Logger) error {
	store, err := storage.Open(cfg.StoreOptions())
	if err != nil {
		return err
	}

	var health func(context.Context) error
	if rs, ok := store.(*storage.RedisStore); ok {
		health = rs.Ping
		defer func() {
			if err := rs.Close(); err != nil {
				log.Error("failed to close store", "error", err)
			}
		}()
	}

	tlsCfg, err := cfg.TLS.ServerConfig()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := router.SetupRoutes(store, router.Options{
		StaleAfter:     cfg.StaleAfter,
		RequestTimeout: cfg.RequestTimeout,
		Health:         health,
		Registry:       reg,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := httpx.NewServer(cfg.Listen, handler, tlsCfg, log)
	return server.Run(ctx, cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.ShutdownTimeout)
}
