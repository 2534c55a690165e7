package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/oklog/run"
	"go.uber.org/zap"

	"github.com/apex-sandbox/sandboxd/internal/config"
	"github.com/apex-sandbox/sandboxd/internal/denylist"
	"github.com/apex-sandbox/sandboxd/internal/logging"
	"github.com/apex-sandbox/sandboxd/internal/metrics"
	"github.com/apex-sandbox/sandboxd/internal/server"
)

// runServe loads configuration, wires up the screener, and runs the raw
// TCP sandbox listener alongside the admin HTTP surface as a coordinated
// run.Group: whichever actor exits first (listener failure, admin server
// failure, or a caught signal) tears down the rest.
func runServe() error {
	if err := godotenv.Load(); err != nil {
		// Try a parent directory .env before giving up; a missing file is
		// not an error, operators may configure entirely via environment.
		if err := godotenv.Load("../.env"); err != nil {
			fmt.Fprintln(os.Stderr, "no .env file found, using environment variables")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	os.Setenv("ENVIRONMENT", cfg.Environment)
	logging.Init()
	defer logging.Sync()
	logger := logging.L()

	logger.Info("starting sandboxd",
		zap.String("version", Version),
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("admin_addr", cfg.AdminAddr),
	)

	metrics.Get().BuildInfo.WithLabelValues(Version).Set(1)

	screener := denylist.New(logger)
	if cfg.DenylistFile != "" {
		if err := screener.LoadFile(cfg.DenylistFile); err != nil {
			logger.Warn("failed to load denylist file, using built-in patterns", zap.Error(err))
		} else if watcher, err := screener.Watch(cfg.DenylistFile); err != nil {
			logger.Warn("failed to watch denylist file for changes", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	sandboxServer := server.New(&cfg, screener, logger)
	adminServer := server.NewAdminServer(&cfg, logger)

	var g run.Group

	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return sandboxServer.Run(ctx)
		}, func(error) {
			cancel()
			_ = sandboxServer.Close()
		})
	}

	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return adminServer.Run(ctx)
		}, func(error) {
			cancel()
		})
	}

	{
		sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		g.Add(func() error {
			<-sigCtx.Done()
			logger.Info("shutdown signal received")
			return nil
		}, func(error) {
			cancel()
		})
	}

	if err := g.Run(); err != nil {
		logger.Error("sandboxd exited with error", zap.Error(err))
		return err
	}
	logger.Info("sandboxd shut down cleanly")
	return nil
}
