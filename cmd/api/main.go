package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/practicum/wallet-ops/internal/cache"
	"github.com/practicum/wallet-ops/internal/config"
	"github.com/practicum/wallet-ops/internal/event"
	"github.com/practicum/wallet-ops/internal/infra"
	"github.com/practicum/wallet-ops/internal/logging"
	"github.com/practicum/wallet-ops/internal/routes"
	"github.com/practicum/wallet-ops/internal/server"
	"github.com/practicum/wallet-ops/internal/updater"
	"github.com/practicum/wallet-ops/internal/wallet"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store wallet.Store
	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = wallet.NewPostgresStore(db)
	} else {
		// Development fallback; config.Load rejects this outside dev.
		logger.Warn("DATABASE_URL not set, using in-memory store")
		store = wallet.NewInMemory()
	}

	ledgerUpdater := updater.New(store, logger, cfg.UpdaterMaxAttempts, cfg.UpdaterRetryBackoff)

	deps := routes.Deps{Store: store, Logger: logger}
	consumerErrCh := make(chan error, 1)

	if cfg.RedisURL != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()

		deps.Cache = cache.NewRedisCache(rdb, cfg.CacheTTL, logger)
		deps.Publisher = event.NewRedisPublisher(rdb, cfg.EventPartitions)

		consumer := event.NewRedisConsumer(rdb, cfg.EventPartitions, cfg.EventGroup, cfg.ReclaimIdle, logger)
		go func() {
			consumerErrCh <- consumer.Run(ctx, ledgerUpdater.Apply)
		}()
	} else {
		logger.Warn("REDIS_URL not set, using in-memory cache and event channel")
		deps.Cache = cache.NewMemoryCache(cfg.CacheTTL)
		channel := event.NewMemoryChannel()
		channel.Subscribe(ledgerUpdater.Apply)
		deps.Publisher = channel
	}

	srv := server.New(cfg, deps, logger)

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	case err := <-consumerErrCh:
		if err != nil {
			logger.Error("consumer error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	// Stop the consumer after the HTTP server has drained.
	cancel()

	logger.Info("server exited cleanly")
}
