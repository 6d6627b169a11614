// Package server provides the JSON HTTP API of the sentinel.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/model"
	"PortfolioSentinel/internal/recorder"
	"PortfolioSentinel/internal/scheduler"
	"PortfolioSentinel/internal/store"
	"PortfolioSentinel/internal/valuation"
)

// Prices resolves quotes and history.
type Prices interface {
	Resolve(ctx context.Context, holdings []model.Holding) model.Quotes
	ResolveWatchlist(ctx context.Context, entries []model.WatchlistEntry) model.Quotes
	Bars(ctx context.Context, symbol, period string) ([]model.Bar, error)
}

// Checker runs the alert pipeline on demand.
type Checker interface {
	RunCheck(ctx context.Context) (scheduler.CheckResult, error)
}

// Config holds server configuration.
type Config struct {
	Log      zerolog.Logger
	Addr     string
	Store    *store.Manager
	Prices   Prices
	Engine   *valuation.Engine
	Checker  Checker
	Recorder recorder.Recorder
	Hub      *Hub
	// AllowedOrigins for CORS and the websocket; empty allows any origin.
	AllowedOrigins []string
}

// Server represents the HTTP server.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	store    *store.Manager
	prices   Prices
	engine   *valuation.Engine
	checker  Checker
	recorder recorder.Recorder
	hub      *Hub
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	if cfg.Recorder == nil {
		cfg.Recorder = recorder.NewNoopRecorder()
	}
	if cfg.Engine == nil {
		cfg.Engine = valuation.NewEngine(valuation.DefaultLowRatio, 0)
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub(cfg.Log)
	}
	cfg.Hub.AllowOrigins(cfg.AllowedOrigins)
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		store:    cfg.Store,
		prices:   cfg.Prices,
		engine:   cfg.Engine,
		checker:  cfg.Checker,
		recorder: cfg.Recorder,
		hub:      cfg.Hub,
	}

	s.setupMiddleware(cfg.AllowedOrigins)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// the websocket must stay outside the timeout middleware
		r.Get("/ws", s.hub.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/portfolio", s.handlePortfolio)
			r.Get("/portfolio/dividends", s.handleDividendYields)
			r.Get("/portfolio/history", s.handleSnapshotHistory)

			r.Route("/holdings", func(r chi.Router) {
				r.Get("/", s.handleListHoldings)
				r.Post("/", s.handleAddHolding)
				r.Get("/export", s.handleExportHoldings)
				r.Post("/import", s.handleImportHoldings)
				r.Put("/{index}", s.handleUpdateHolding)
				r.Delete("/{index}", s.handleDeleteHolding)
			})

			r.Route("/watchlist", func(r chi.Router) {
				r.Get("/", s.handleListWatchlist)
				r.Post("/", s.handleAddWatch)
				r.Delete("/{index}", s.handleDeleteWatch)
				r.Post("/{index}/buy", s.handleBuyWatch)
			})

			r.Route("/dividends", func(r chi.Router) {
				r.Get("/", s.handleListDividends)
				r.Post("/", s.handleAddDividend)
				r.Delete("/{index}", s.handleDeleteDividend)
			})

			r.Get("/history/{ticker}", s.handleHistory)

			r.Get("/alerts", s.handleRecentAlerts)
			r.Post("/alerts/check", s.handleRunCheck)
		})
	})
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
