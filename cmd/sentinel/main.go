package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PortfolioSentinel/internal/app"
	"PortfolioSentinel/internal/config"
	"PortfolioSentinel/internal/logger"
	"PortfolioSentinel/internal/server"
)

func main() {
	cfg, err := config.Load(config.Path())
	log := logger.New(logger.Config{Level: "info"})
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	log = logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log.Info().Str("storage", cfg.Storage.Backend).Msg("PortfolioSentinel starting")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init")
	}
	defer a.Close()

	hub := server.NewHub(log)

	sched := a.Scheduler(ctx, hub)
	if err := sched.RegisterAll(cfg.Schedule.OpenCron, cfg.Schedule.CheckCron, cfg.Schedule.CloseCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:            log,
		Addr:           cfg.Server.Addr,
		Store:          a.Store,
		Prices:         a.Prices,
		Engine:         a.Engine,
		Checker:        sched,
		Recorder:       a.Recorder,
		Hub:            hub,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			cancel()
		}
	}()

	if a.Telegram != nil {
		go a.Telegram.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("Telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, running a check now")
		go func() {
			if _, err := sched.RunCheck(ctx); err != nil {
				log.Error().Err(err).Msg("startup check")
			}
		}()
	}

	log.Info().Msg("PortfolioSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received, stopping...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown")
	}
	cancel()
	log.Info().Msg("PortfolioSentinel stopped")
}
