// File: pkg/app/app.go

// Package app wires the trading bot together: broker adapter, candle cache,
// news provider, controller, and the HTTP control surface.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crazy8156/okx/dataprovider"
	"github.com/crazy8156/okx/notification/discord"
	"github.com/crazy8156/okx/pkg/broker/okx"
	"github.com/crazy8156/okx/utilities"
	"github.com/crazy8156/okx/web"
)

// Run constructs every component from the loaded configuration, performs the
// startup preflight, and serves until an interrupt arrives. Startup failures
// are fatal by design; everything after startup is catch-and-continue.
func Run(cfg *utilities.AppConfig, logger *utilities.Logger) error {
	if cfg.OKX.APIKey == "" || cfg.OKX.APISecret == "" || cfg.OKX.Passphrase == "" {
		return fmt.Errorf("OKX API credentials are not configured (api_key/api_secret/passphrase)")
	}

	var cache *dataprovider.SQLiteCache
	if cfg.DB.DBPath != "" {
		var err error
		cache, err = dataprovider.NewSQLiteCache(&cfg.DB, logger)
		if err != nil {
			return fmt.Errorf("candle cache init: %w", err)
		}
		defer cache.Close()
	} else {
		logger.LogWarn("App: no database_path configured, candle caching disabled.")
	}

	adapter := okx.NewAdapter(&cfg.OKX, cache, logger)

	var news dataprovider.NewsProvider
	if cfg.News != nil && cfg.News.APIKey != "" {
		news = dataprovider.NewCryptoPanicProvider(cfg.News, logger)
	} else {
		logger.LogWarn("App: no news API key configured, sentiment feed disabled.")
	}

	notifier := discord.NewClient(&cfg.Discord, logger)
	if notifier == nil {
		logger.LogInfo("App: Discord notifications disabled.")
	}

	controller := NewController(cfg, adapter, news, notifier, logger)

	// Preflight: instrument metadata must load before anything can trade.
	preflightCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := adapter.RefreshInstruments(preflightCtx); err != nil {
		return fmt.Errorf("exchange connectivity preflight failed: %w", err)
	}

	if cache != nil {
		stop := make(chan struct{})
		defer close(stop)
		cache.StartScheduledCleanup(6*time.Hour, 14*24*time.Hour, stop)
	}

	server := web.NewServer(&cfg.Web, controller, logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	logger.LogInfo("App: %s v%s up, control surface on %s (%s).",
		cfg.AppName, cfg.Version, cfg.Web.ListenAddr, modeLabel(cfg))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.LogInfo("App: received %s, shutting down.", sig)
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
	}

	controller.Stop()
	if err := server.Shutdown(); err != nil {
		logger.LogWarn("App: web server shutdown: %v", err)
	}
	return nil
}

func modeLabel(cfg *utilities.AppConfig) string {
	if cfg.OKX.Sandbox {
		return "sandbox"
	}
	return "live"
}
