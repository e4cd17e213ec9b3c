// Package main wires together the audiobook catalog service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/audiobookdb/audiobookdb/internal/api"
	"github.com/audiobookdb/audiobookdb/internal/audible"
	"github.com/audiobookdb/audiobookdb/internal/config"
	"github.com/audiobookdb/audiobookdb/internal/logging"
	"github.com/audiobookdb/audiobookdb/internal/metrics"
	"github.com/audiobookdb/audiobookdb/internal/resolver"
	"github.com/audiobookdb/audiobookdb/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("schema migration failed", zap.Error(err))
	}

	client := audible.NewClient(audible.ClientConfig{
		BaseURL:        cfg.Upstream.BaseURL,
		Timeout:        cfg.UpstreamTimeout(),
		RequestsPerSec: cfg.Upstream.RequestsPerSec,
	}, logger.Named("audible"))

	scraper, err := audible.NewScraper(audible.ScraperConfig{
		BaseURL:   cfg.Scraper.BaseURL,
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.ScraperTimeout(),
	}, logger.Named("scraper"))
	if err != nil {
		logger.Fatal("scraper init failed", zap.Error(err))
	}

	svc := resolver.New(
		store,
		store,
		resolver.UpstreamClient{Client: client},
		scraper,
		logger.Named("resolver"),
		resolver.Config{
			ChunkSize:         cfg.Resolver.ChunkSize,
			ChunkStagger:      cfg.ChunkStagger(),
			MaxCommitAttempts: cfg.Resolver.MaxCommitAttempts,
			CommitBase:        time.Duration(cfg.Resolver.CommitBaseMs) * time.Millisecond,
			CommitJitter:      time.Duration(cfg.Resolver.CommitJitterMs) * time.Millisecond,
		},
	)

	apiServer := api.NewServer(svc, store, logger.Named("api"), cfg.Server)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
