package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/model"
	"PortfolioSentinel/internal/news"
	"PortfolioSentinel/internal/notifier"
	"PortfolioSentinel/internal/recorder"
	"PortfolioSentinel/internal/valuation"
)

// PortfolioSource supplies the current application state.
type PortfolioSource interface {
	Portfolio() model.Portfolio
}

// PriceResolver prices holdings and watchlist entries.
type PriceResolver interface {
	Resolve(ctx context.Context, holdings []model.Holding) model.Quotes
	ResolveWatchlist(ctx context.Context, entries []model.WatchlistEntry) model.Quotes
}

// NewsSource builds the headline digest. Optional.
type NewsSource interface {
	Digest(ctx context.Context, holdings []model.Holding, n int) []news.HoldingNews
}

// Broadcaster pushes fresh snapshots to live subscribers. Optional.
type Broadcaster interface {
	Broadcast(snap model.PortfolioSnapshot)
}

// Deps are the collaborators of the scheduler.
type Deps struct {
	Store    PortfolioSource
	Prices   PriceResolver
	Engine   *valuation.Engine
	Notifier notifier.Notifier
	Recorder recorder.Recorder
	News     NewsSource
	Hub      Broadcaster
}

// Options tune the pipeline.
type Options struct {
	// OncePerDay suppresses an alert already recorded today for the same
	// ticker and kind.
	OncePerDay bool
	NewsCount  int
	Now        func() time.Time
}

// CheckResult is the outcome of one check run.
type CheckResult struct {
	Snapshot   model.PortfolioSnapshot `json:"snapshot"`
	Alerts     []model.AlertEvent      `json:"alerts"`
	Suppressed int                     `json:"suppressed"`
	Sent       bool                    `json:"sent"`
	SnapshotID string                  `json:"snapshot_id,omitempty"`
}

// Scheduler manages the cron jobs and the check pipeline.
type Scheduler struct {
	Cron *cron.Cron
	Deps
	opts Options
	ctx  context.Context
	log  zerolog.Logger

	run sync.Mutex // one pipeline run at a time
}

// NewScheduler creates a new Scheduler. ctx bounds every job it runs.
func NewScheduler(ctx context.Context, deps Deps, opts Options, log zerolog.Logger) *Scheduler {
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	if deps.Notifier == nil {
		deps.Notifier = notifier.LogNotifier{Log: log}
	}
	if deps.Engine == nil {
		deps.Engine = valuation.NewEngine(valuation.DefaultLowRatio, 0)
	}
	if opts.NewsCount <= 0 {
		opts.NewsCount = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		Deps: deps,
		opts: opts,
		ctx:  ctx,
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the market open, periodic check and market close jobs.
func (s *Scheduler) RegisterAll(openCron, checkCron, closeCron string) error {
	if _, err := s.Cron.AddFunc(openCron, s.openTask); err != nil {
		return fmt.Errorf("register open task: %w", err)
	}
	if _, err := s.Cron.AddFunc(checkCron, s.checkTask); err != nil {
		return fmt.Errorf("register check task: %w", err)
	}
	if _, err := s.Cron.AddFunc(closeCron, s.closeTask); err != nil {
		return fmt.Errorf("register close task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// Snapshot prices every holding and values the portfolio.
func (s *Scheduler) Snapshot(ctx context.Context) model.PortfolioSnapshot {
	p := s.Store.Portfolio()
	quotes := s.Prices.Resolve(ctx, p.Holdings)
	snap := s.Engine.EvaluatePortfolio(p.Holdings, quotes)
	s.broadcast(snap)
	return snap
}

// RunCheck is the headless pipeline: load, price, evaluate, alert, notify,
// record. Alerts are batched into a single push. A failed push is logged
// and reported through Sent; it never fails the run.
func (s *Scheduler) RunCheck(ctx context.Context) (CheckResult, error) {
	s.run.Lock()
	defer s.run.Unlock()

	p := s.Store.Portfolio()
	quotes := s.Prices.Resolve(ctx, p.Holdings)
	if err := ctx.Err(); err != nil {
		return CheckResult{}, err
	}

	res := CheckResult{Snapshot: s.Engine.EvaluatePortfolio(p.Holdings, quotes)}
	s.broadcast(res.Snapshot)

	alerts := s.Engine.CheckAlerts(p.Holdings, quotes)
	if len(p.Watchlist) > 0 {
		watchQuotes := s.Prices.ResolveWatchlist(ctx, p.Watchlist)
		alerts = append(alerts, s.Engine.CheckWatchlist(p.Watchlist, watchQuotes)...)
	}
	res.Alerts, res.Suppressed = s.filterSuppressed(ctx, alerts)

	id, err := s.Recorder.RecordSnapshot(ctx, "check", &res.Snapshot)
	if err != nil {
		s.log.Error().Err(err).Msg("record snapshot")
	}
	res.SnapshotID = id

	s.log.Info().
		Int("holdings", len(p.Holdings)).
		Int("unpriced", len(res.Snapshot.Unpriced)).
		Int("alerts", len(res.Alerts)).
		Int("suppressed", res.Suppressed).
		Msg("check complete")

	if len(res.Alerts) == 0 {
		return res, nil
	}
	err = s.Notifier.Send(ctx, notifier.AlertTitle, notifier.FormatAlerts(res.Alerts))
	if !notifier.Delivered(err) {
		s.log.Error().Err(err).Msg("send alerts")
		return res, nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("alerts partially delivered")
	}
	res.Sent = true

	now := s.opts.Now()
	for _, a := range res.Alerts {
		if err := s.Recorder.RecordAlert(ctx, a, now); err != nil {
			s.log.Error().Err(err).Str("ticker", a.Ticker).Msg("record alert")
		}
	}
	return res, nil
}

// filterSuppressed drops alerts already fired today when OncePerDay is set.
func (s *Scheduler) filterSuppressed(ctx context.Context, alerts []model.AlertEvent) ([]model.AlertEvent, int) {
	if !s.opts.OncePerDay || len(alerts) == 0 {
		return alerts, 0
	}
	now := s.opts.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	kept := alerts[:0]
	suppressed := 0
	for _, a := range alerts {
		fired, err := s.Recorder.AlertFiredSince(ctx, a.Ticker, a.Kind, midnight)
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", a.Ticker).Msg("alert history lookup failed")
		}
		if fired {
			suppressed++
			continue
		}
		kept = append(kept, a)
	}
	return kept, suppressed
}

func (s *Scheduler) openTask() {
	s.log.Info().Msg("running market open task")
	p := s.Store.Portfolio()
	snap := s.Snapshot(s.ctx)
	s.record("open", snap)

	var b strings.Builder
	b.WriteString(notifier.FormatSummary(snap))
	if s.News != nil {
		if digest := notifier.FormatNews(s.News.Digest(s.ctx, p.Holdings, s.opts.NewsCount)); digest != "" {
			b.WriteString("\n\n" + digest)
		}
	}
	s.trySend("🔔 Ouverture de la Bourse", b.String())
}

func (s *Scheduler) checkTask() {
	s.log.Info().Msg("running periodic check")
	if _, err := s.RunCheck(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("periodic check")
	}
}

func (s *Scheduler) closeTask() {
	s.log.Info().Msg("running market close task")
	snap := s.Snapshot(s.ctx)
	s.record("close", snap)
	s.trySend("🏁 Clôture de la Bourse", notifier.FormatSummary(snap))
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	cmd := strings.ToLower(strings.Fields(command + " ")[0])
	cmd, _, _ = strings.Cut(cmd, "@")
	switch cmd {
	case "/portfolio", "/portefeuille":
		return notifier.FormatSummary(s.Snapshot(ctx))
	case "/watchlist":
		p := s.Store.Portfolio()
		return notifier.FormatWatchlist(p.Watchlist, s.Prices.ResolveWatchlist(ctx, p.Watchlist))
	case "/alerts", "/alertes":
		records, err := s.Recorder.RecentAlerts(ctx, 10)
		if err != nil {
			return fmt.Sprintf("❌ Historique indisponible: %v", err)
		}
		return notifier.FormatAlertHistory(records)
	case "/check":
		res, err := s.RunCheck(ctx)
		if err != nil {
			return fmt.Sprintf("❌ Vérification échouée: %v", err)
		}
		if len(res.Alerts) == 0 {
			return "✅ Aucune alerte"
		}
		return fmt.Sprintf("%d alerte(s) envoyée(s)", len(res.Alerts))
	default:
		return "Commandes disponibles:\n• /portfolio\n• /watchlist\n• /alerts\n• /check"
	}
}

func (s *Scheduler) record(label string, snap model.PortfolioSnapshot) {
	if _, err := s.Recorder.RecordSnapshot(s.ctx, label, &snap); err != nil {
		s.log.Error().Err(err).Str("label", label).Msg("record snapshot")
	}
}

func (s *Scheduler) broadcast(snap model.PortfolioSnapshot) {
	if s.Hub != nil {
		s.Hub.Broadcast(snap)
	}
}

func (s *Scheduler) trySend(title, message string) {
	if err := s.Notifier.Send(s.ctx, title, message); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}
