package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradelab/internal/config"
	"tradelab/internal/httpapi"
	"tradelab/internal/marketdata"
	"tradelab/internal/store"
	"tradelab/internal/util"
)

func main() {
	// Load config.
	cfgPath := "config/tradelab.yaml"
	if p := os.Getenv("TRADELAB_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Setup logging.
	logger := util.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	// Optional bar cache.
	var cache store.BarStore
	switch cfg.Storage.Backend {
	case "":
		// Caching disabled.
	case "parquet":
		cache = store.NewParquetStore(cfg.Storage.DataDir)
	case "sqlite":
		cache, err = store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening bar cache: %v", err)
		}
	default:
		log.Fatalf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cache != nil {
		defer cache.Close()
	}

	data := marketdata.NewService(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		cfg.Alpaca.Feed,
		cache,
		cfg.Fetch.MaxAttempts,
		time.Duration(cfg.Fetch.RetryDelayMS)*time.Millisecond,
		cfg.Fetch.RateLimitPerMin,
		logger,
	)

	srv := httpapi.NewServer(data, cfg.Backtest.Benchmarks, cfg.Server.AllowedOrigins, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("tradelab server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down tradelab server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
