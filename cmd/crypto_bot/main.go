package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"crypto_bot/internal/admin"
	"crypto_bot/internal/bot"
	"crypto_bot/internal/catalog"
	"crypto_bot/internal/config"
	"crypto_bot/internal/logger"
	"crypto_bot/internal/market"
	"crypto_bot/internal/market/alpaca"
	"crypto_bot/internal/market/coingecko"
	"crypto_bot/internal/models"
	"crypto_bot/internal/report"
	"crypto_bot/internal/slack"
	"crypto_bot/internal/storage"
)

const VersionFile = "version.latest"

func main() {
	// 1. Initialization
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	cfg.Version = readVersion()

	logErr := logger.Setup(logger.Options{
		Filename:       cfg.LogFile,
		MaxSizeMB:      cfg.MaxLogSizeMB,
		MaxBackups:     cfg.MaxLogBackups,
		Level:          cfg.LogLevel,
		Format:         cfg.LogFormat,
		TracingEnabled: cfg.TracingEnabled,
		ServiceName:    "crypto_bot",
		Version:        cfg.Version,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if logErr != nil {
		logger.Warn(ctx, "Logging to stdout only", "error", logErr)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error(ctx, "Invalid display timezone", "timezone", cfg.DisplayTimezone, "error", err)
		os.Exit(1)
	}

	// 2. Market data and catalog
	gecko := coingecko.NewClient(cfg.CoinGeckoBaseURL, cfg.CoinGeckoAPIKey, cfg.RequestTimeout())
	cache := catalog.NewCache(gecko)
	restored, err := buildCatalog(ctx, cfg, cache)
	if err != nil {
		logger.Error(ctx, "Coin catalog unavailable, exiting", "error", err)
		os.Exit(1)
	}
	saveSnapshot := func(assets []models.Asset) {
		if cfg.CatalogSnapshotFile == "" {
			return
		}
		if err := storage.SaveSnapshot(cfg.CatalogSnapshotFile, assets, time.Now()); err != nil {
			logger.Warn(ctx, "Failed to save catalog snapshot", "error", err)
		}
	}
	if !restored {
		saveSnapshot(cache.Assets())
	}

	var source market.MarketDataSource = gecko
	if cfg.PriceFeed == "alpaca" {
		pairs := cfg.AlpacaPairs
		if len(pairs) == 0 {
			pairs = alpaca.DefaultPairs
		}
		source = alpaca.NewProvider(gecko, pairs, cfg.AlpacaKeyID, cfg.AlpacaSecretKey, cfg.RequestTimeout())
	}

	// 3. Bot and Slack surface
	slackClient := slack.NewClient(cfg.SlackAPIURL, cfg.SlackBotToken, cfg.SlackAppToken, cfg.RequestTimeout())
	listener := slack.NewListener(slackClient)
	gateway := slack.NewGateway(slackClient, listener)
	b := bot.New(cfg, gateway, catalog.NewResolver(cache), report.New(source, cache, loc))

	// 4. Signal handling
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Warn(ctx, "Shutting down: system signal received")
		cancel()
	}()

	logger.Info(ctx, "Crypto bot initialized",
		"version", cfg.Version,
		"price_feed", cfg.PriceFeed,
		"catalog_refresh", cfg.CatalogRefreshInterval())

	// 5. Background loops
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cache.Run(ctx, cfg.CatalogRefreshInterval(), saveSnapshot)
	}()

	if cfg.AdminAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv := admin.NewServer(cfg, cache, saveSnapshot)
			if err := srv.Run(ctx, cfg.AdminAddr); err != nil {
				logger.Error(ctx, "Admin server stopped", "error", err)
			}
		}()
	}

	if err := listener.Run(ctx, b); err != nil {
		logger.Error(ctx, "Slack listener stopped", "error", err)
	}
	cancel()
	wg.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := logger.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Tracer shutdown failed", "error", err)
	}
	logger.Info(ctx, "Crypto bot stopped")
}

// buildCatalog builds the catalog from the provider, falling back to the last
// saved snapshot when one is configured.
func buildCatalog(ctx context.Context, cfg *config.Config, cache *catalog.Cache) (restored bool, err error) {
	err = cache.Build(ctx)
	if err == nil {
		stats := cache.Stats()
		logger.Info(ctx, "Coin catalog built", "assets", stats.Assets, "symbols", stats.Symbols)
		return false, nil
	}
	if cfg.CatalogSnapshotFile == "" {
		return false, err
	}

	snap, snapErr := storage.LoadSnapshot(cfg.CatalogSnapshotFile)
	if snapErr != nil {
		return false, errors.Join(err, snapErr)
	}
	cache.Restore(snap.Assets, snap.SavedAt)
	logger.Warn(ctx, "Coin catalog restored from snapshot",
		"error", err,
		"file", cfg.CatalogSnapshotFile,
		"saved_at", snap.SavedAt,
		"assets", len(snap.Assets))
	return true, nil
}

func readVersion() string {
	version, err := os.ReadFile(VersionFile)
	if err != nil {
		return "v0.0.0-dev"
	}
	return strings.TrimSpace(string(version))
}
