// Package app assembles the components from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/config"
	"PortfolioSentinel/internal/news"
	"PortfolioSentinel/internal/notifier"
	"PortfolioSentinel/internal/pricing"
	"PortfolioSentinel/internal/recorder"
	"PortfolioSentinel/internal/scheduler"
	"PortfolioSentinel/internal/store"
	"PortfolioSentinel/internal/valuation"
)

// App holds the assembled components. Close releases them.
type App struct {
	Config   *config.Config
	Store    *store.Manager
	Prices   *pricing.Resolver
	Engine   *valuation.Engine
	Notifier notifier.Notifier
	Telegram *notifier.TelegramNotifier // nil when not configured
	Recorder recorder.Recorder
	News     *news.Client
	Log      zerolog.Logger
}

// New builds every component and loads the portfolio. A failed load
// leaves the affected collections empty and is only logged.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Store:    store.NewManager(backend, cfg.Storage.Files, log),
		Prices:   NewResolver(cfg, log),
		Engine:   valuation.NewEngine(cfg.Alerts.LowRatio, cfg.Alerts.HighRatio),
		Recorder: NewRecorder(cfg, log),
		News:     news.NewClient(cfg.Proxy, cfg.Pricing.Timeout, log),
		Log:      log,
	}
	a.Notifier, a.Telegram = NewNotifier(cfg, log)

	if err := a.Store.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("portfolio loaded with errors")
	}
	return a, nil
}

// Scheduler creates the scheduler over the app components. hub may be nil.
func (a *App) Scheduler(ctx context.Context, hub scheduler.Broadcaster) *scheduler.Scheduler {
	deps := scheduler.Deps{
		Store:    a.Store,
		Prices:   a.Prices,
		Engine:   a.Engine,
		Notifier: a.Notifier,
		Recorder: a.Recorder,
		Hub:      hub,
	}
	if a.News != nil {
		deps.News = a.News
	}
	opts := scheduler.Options{
		OncePerDay: a.Config.Alerts.OncePerDay,
		NewsCount:  a.Config.News.Count,
	}
	return scheduler.NewScheduler(ctx, deps, opts, a.Log)
}

// Close releases the recorder.
func (a *App) Close() error {
	return a.Recorder.Close()
}

// NewBackend selects the storage backend.
func NewBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendGitHub:
		gh := cfg.Storage.GitHub
		return store.NewGitHubBackend(gh.Repo, gh.Token, gh.Branch, gh.Dir), nil
	case config.BackendS3:
		b, err := store.NewS3Backend(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, fmt.Errorf("init s3 backend: %w", err)
		}
		return b, nil
	case config.BackendFile, "":
		b, err := store.NewFileBackend(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("init file backend: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// NewResolver builds the price fallback chain: the chart API first, then
// go-yfinance; OpenFIGI and Yahoo search map ISINs; the scrape source is
// used when a URL template is configured.
func NewResolver(cfg *config.Config, log zerolog.Logger) *pricing.Resolver {
	p := cfg.Pricing
	chart := pricing.NewChartSource(cfg.Proxy, p.Timeout)
	yf := pricing.NewYFinanceSource(log)

	r := pricing.NewResolver(log, chart, yf)
	r.History = chart
	r.StepTimeout = p.Timeout
	r.Lookups = []pricing.ISINLookup{
		pricing.NewOpenFIGIClient(p.OpenFIGIKey, cfg.Proxy, p.Timeout, log),
		yf,
	}
	if p.ScrapeURL != "" {
		r.Scrape = pricing.NewScrapeSource(p.ScrapeURL, p.ScrapePath, p.ScrapeKey, cfg.Proxy, p.Timeout)
	}
	return r
}

// NewNotifier fans out to every configured transport, or logs alerts when
// none is. The Telegram notifier is returned separately for command polling.
func NewNotifier(cfg *config.Config, log zerolog.Logger) (notifier.Notifier, *notifier.TelegramNotifier) {
	var multi notifier.Multi
	var tg *notifier.TelegramNotifier

	if cfg.HasPushover() {
		multi = append(multi, notifier.NewPushoverNotifier(cfg.Pushover.APIToken, cfg.Pushover.UserKey, cfg.Pushover.Priority, cfg.Proxy))
	}
	if cfg.HasTelegram() {
		tg = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		multi = append(multi, tg)
	}
	if len(multi) == 0 {
		log.Warn().Msg("no notification transport configured, alerts are only logged")
		return notifier.LogNotifier{Log: log}, nil
	}
	return multi, tg
}

// NewRecorder opens the SQLite history, falling back to a no-op recorder.
func NewRecorder(cfg *config.Config, log zerolog.Logger) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	r, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
	if err != nil {
		log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		return recorder.NewNoopRecorder()
	}
	return r
}
