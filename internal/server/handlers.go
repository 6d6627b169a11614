package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"PortfolioSentinel/internal/calculator"
	"PortfolioSentinel/internal/model"
	"PortfolioSentinel/internal/pricing"
	"PortfolioSentinel/internal/store"
	"PortfolioSentinel/internal/valuation"
)

const maxImportSize = 1 << 20

var errBadRequest = errors.New("bad request")

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrMissingTicker),
		errors.Is(err, model.ErrInvalidQuantity),
		errors.Is(err, model.ErrInvalidCostBasis),
		errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, store.ErrMissingColumn):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNoSuchIndex):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

func indexParam(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid index %q", errBadRequest, chi.URLParam(r, "index"))
	}
	return i, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(store.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", errBadRequest, s)
	}
	return t, nil
}

// holdingInput is the request body for holdings; dates are YYYY-MM-DD.
type holdingInput struct {
	Name         string  `json:"name"`
	ISIN         string  `json:"isin"`
	Ticker       string  `json:"ticker"`
	CostBasis    float64 `json:"cost_basis"`
	Quantity     float64 `json:"quantity"`
	PurchaseDate string  `json:"purchase_date"`
	AlertHigh    float64 `json:"alert_high"`
	AlertLow     float64 `json:"alert_low"`
	ManualPrice  float64 `json:"manual_price"`
}

func (in holdingInput) toHolding() (model.Holding, error) {
	date, err := parseDate(in.PurchaseDate)
	if err != nil {
		return model.Holding{}, err
	}
	return model.Holding{
		Name:         strings.TrimSpace(in.Name),
		ISIN:         strings.ToUpper(strings.TrimSpace(in.ISIN)),
		Ticker:       strings.ToUpper(strings.TrimSpace(in.Ticker)),
		CostBasis:    in.CostBasis,
		Quantity:     in.Quantity,
		PurchaseDate: date,
		AlertHigh:    in.AlertHigh,
		AlertLow:     in.AlertLow,
		ManualPrice:  in.ManualPrice,
	}, nil
}

type buyInput struct {
	Quantity  float64 `json:"quantity"`
	CostBasis float64 `json:"cost_basis"`
	Date      string  `json:"date"`
}

type dividendInput struct {
	Ticker string  `json:"ticker"`
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"subscribers": s.hub.Clients(),
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	holdings := s.store.Holdings()
	quotes := s.prices.Resolve(r.Context(), holdings)
	snap := s.engine.EvaluatePortfolio(holdings, quotes)
	s.hub.Broadcast(snap)
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDividendYields(w http.ResponseWriter, _ *http.Request) {
	p := s.store.Portfolio()
	s.writeJSON(w, http.StatusOK, valuation.DividendYields(p.Holdings, p.Dividends))
}

func (s *Server) handleSnapshotHistory(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.recorder.RecentSnapshots(r.Context(), limitParam(r, 100))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleListHoldings(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Holdings())
}

func (s *Server) handleAddHolding(w http.ResponseWriter, r *http.Request) {
	var in holdingInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	h, err := in.toHolding()
	if err == nil {
		err = s.store.AddHolding(r.Context(), h)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleUpdateHolding(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var in holdingInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	h, err := in.toHolding()
	if err == nil {
		err = s.store.UpdateHolding(r.Context(), i, h)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err == nil {
		err = s.store.DeleteHolding(r.Context(), i)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportHoldings(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := s.store.ExportHoldings(&buf); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="portefeuille.csv"`)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImportHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := store.DecodeHoldings(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := s.store.ReplaceHoldings(r.Context(), holdings); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info().Int("rows", len(holdings)).Msg("holdings imported")
	s.writeJSON(w, http.StatusOK, map[string]int{"imported": len(holdings)})
}

func (s *Server) handleListWatchlist(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Watchlist())
}

func (s *Server) handleAddWatch(w http.ResponseWriter, r *http.Request) {
	var e model.WatchlistEntry
	if err := decode(r, &e); err != nil {
		s.writeError(w, err)
		return
	}
	e.Ticker = strings.ToUpper(strings.TrimSpace(e.Ticker))
	if err := s.store.AddWatch(r.Context(), e); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteWatch(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err == nil {
		err = s.store.DeleteWatch(r.Context(), i)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBuyWatch(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var in buyInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	date, err := parseDate(in.Date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if date.IsZero() {
		date = time.Now().Truncate(24 * time.Hour)
	}
	h, err := s.store.BuyWatch(r.Context(), i, in.Quantity, in.CostBasis, date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleListDividends(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Dividends())
}

func (s *Server) handleAddDividend(w http.ResponseWriter, r *http.Request) {
	var in dividendInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	date, err := parseDate(in.Date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	d := model.DividendRecord{Ticker: strings.ToUpper(strings.TrimSpace(in.Ticker)), Date: date, Amount: in.Amount}
	if err := s.store.AddDividend(r.Context(), d); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleDeleteDividend(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err == nil {
		err = s.store.DeleteDividend(r.Context(), i)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type historyResponse struct {
	Ticker  string             `json:"ticker"`
	Period  string             `json:"period"`
	Bars    []model.Bar        `json:"bars"`
	Summary calculator.Summary `json:"summary"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1y"
	}
	if !pricing.ValidPeriod(period) {
		s.writeError(w, fmt.Errorf("%w: period must be one of %s", errBadRequest, strings.Join(pricing.Periods, ", ")))
		return
	}
	bars, err := s.prices.Bars(r.Context(), ticker, period)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, historyResponse{
		Ticker:  ticker,
		Period:  period,
		Bars:    bars,
		Summary: calculator.Summarize(bars),
	})
}

func (s *Server) handleRecentAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.recorder.RecentAlerts(r.Context(), limitParam(r, 50))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleRunCheck(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "alert check is not configured"})
		return
	}
	res, err := s.checker.RunCheck(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func limitParam(r *http.Request, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 1000 {
		return n
	}
	return def
}
