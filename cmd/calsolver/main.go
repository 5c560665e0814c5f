// Command calsolver implements the rxcal receiver calibration solver.
//
// The solver runs a continuous solve loop that:
//  1. Fetches one calibration observation (S11 measurement sets and switched
//     spectra) through an adapter
//  2. Fits the receiver, internal switch and per-load reflection models
//  3. Solves the radiometer equations for C1, C2, Tunc, Tcos and Tsin
//  4. Stores the solution snapshot for consumers
//  5. Exposes the solution via HTTP API at /calibration/current
//
// The solver serves an HTTP API on port 8081 (configurable) providing:
//   - GET /calibration/current?observation=<name> - Latest solution snapshot
//   - GET /calibration/evaluate?observation=<name>&freq=<f1,f2,...> -
//     Curves evaluated on a requested frequency grid
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	calsolver \
//	  -observation=receiver01_2026_050_to_100 \
//	  -adapter=file \
//	  -f-low=50 -f-high=100 \
//	  -cterms=6 -wterms=5
//
// Environment variables:
//
//	OBSERVATION    - Observation name (required)
//	ADAPTER        - Adapter type: file or http (required)
//	ADAPTER_*      - Adapter configuration (e.g. ADAPTER_ROOT, ADAPTER_URL)
//	F_LOW, F_HIGH  - Analysis band in MHz (default: 50-100)
//	CTERMS, WTERMS - Calibration curve fit orders (default: 6, 5)
//	STORAGE        - Storage backend: memory or redis (default: memory)
//	INTERVAL       - Re-solve interval (default: 1h)
//	LOG_LEVEL      - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT     - Logging format: text, json (default: text)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lowband/rxcal/cmd/calsolver/config"
	"github.com/lowband/rxcal/cmd/calsolver/metrics"
	"github.com/lowband/rxcal/cmd/calsolver/router"
	"github.com/lowband/rxcal/pkg/adapters"
	"github.com/lowband/rxcal/pkg/httpx"
	"github.com/lowband/rxcal/pkg/storage"
	"github.com/lowband/rxcal/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting rxcal calsolver",
		"version", version,
		"observation", cfg.Observation,
		"band_mhz", []float64{cfg.FLow, cfg.FHigh},
	)

	adapter, err := adapters.New(cfg.Adapter, cfg.AdapterConfig)
	if err != nil {
		logger.Error("failed to create adapter", "error", err)
		os.Exit(1)
	}

	store := newStore(cfg, logger)
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close store", "error", err)
			}
		}()
	}

	solver := NewSolver(cfg, adapter, store, logger, metrics.New(cfg.Observation))

	staleAfter := 2 * cfg.Interval // Solution is stale if older than 2x the interval
	mux := router.SetupRoutes(store, solver, staleAfter, logger)
	httpServer := httpx.NewServer(cfg.Listen, mux, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := solver.Run(ctx, cfg.Interval); err != nil && err != context.Canceled {
			logger.Error("solve loop failed", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- startServer(httpServer, cfg, logger)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func startServer(server *httpx.Server, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.TLS.Enabled {
		return server.Start()
	}

	tlsConfig, err := tls.NewServerTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
	if err != nil {
		logger.Error("failed to create TLS config", "error", err)
		return err
	}
	server.SetTLSConfig(tlsConfig)
	return server.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func newStore(cfg *config.Config, logger *slog.Logger) storage.Store {
	if cfg.Storage == "redis" {
		store, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			logger.Error("failed to create redis store", "error", err)
			os.Exit(1)
		}
		logger.Info("using redis storage", "addr", cfg.RedisAddr)
		return store
	}

	logger.Info("using memory storage")
	return storage.NewMemoryStore()
}
