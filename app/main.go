package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedcourier/feedcourier/app/api"
	"github.com/feedcourier/feedcourier/app/bootstrap"
	"github.com/feedcourier/feedcourier/app/cfg"
	"github.com/feedcourier/feedcourier/app/database"
	"github.com/feedcourier/feedcourier/app/feed"
	"github.com/feedcourier/feedcourier/app/sink"
	"github.com/feedcourier/feedcourier/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Feed Courier", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	destRepo := database.NewDestinationRepository(db)
	subRepo := database.NewSubscriptionRepository(db)
	ledgerRepo := database.NewLedgerRepository(db)
	deliveryRepo := database.NewDeliveryRepository(db)

	if appCfg.BootstrapFile != "" {
		loader := bootstrap.NewLoader(feedRepo, destRepo, subRepo)
		if err := loader.Run(appCfg.BootstrapFile); err != nil {
			slog.Error("Bootstrap failed", "file", appCfg.BootstrapFile, "error", err)
			os.Exit(1)
		}
	}

	feedParser := feed.NewParser(&http.Client{}, appCfg.UserAgent,
		time.Duration(appCfg.FetchTimeout)*time.Second)

	telegramSink, err := sink.NewTelegramSink(appCfg.BotToken,
		time.Duration(appCfg.SendTimeout)*time.Second)
	if err != nil {
		slog.Error("Failed to initialize Telegram sink", "error", err)
		os.Exit(1)
	}

	scheduler := tasks.NewScheduler(feedRepo, subRepo, destRepo, ledgerRepo, deliveryRepo,
		feedParser, telegramSink)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(feedRepo, destRepo, subRepo, deliveryRepo, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
