package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingTicker    = errors.New("ticker is required")
	ErrInvalidQuantity  = errors.New("quantity must be a non-negative number")
	ErrInvalidCostBasis = errors.New("cost basis must be a non-negative number")
	ErrInvalidAmount    = errors.New("amount must be a non-negative number")
)

// Holding is one owned position.
type Holding struct {
	Name         string    `json:"name"`
	ISIN         string    `json:"isin,omitempty"`
	Ticker       string    `json:"ticker"`
	CostBasis    float64   `json:"cost_basis"` // PRU, per unit
	Quantity     float64   `json:"quantity"`
	PurchaseDate time.Time `json:"purchase_date,omitempty"`
	AlertHigh    float64   `json:"alert_high,omitempty"` // 0 = unset
	AlertLow     float64   `json:"alert_low,omitempty"`  // 0 = unset
	ManualPrice  float64   `json:"manual_price,omitempty"`
}

// Label returns the display name, falling back to the ticker, then the ISIN.
func (h Holding) Label() string {
	if strings.TrimSpace(h.Name) != "" {
		return h.Name
	}
	return h.Symbol()
}

// Symbol returns the ticker, or the ISIN for an ISIN-only holding.
func (h Holding) Symbol() string { return symbol(h.Ticker, h.ISIN) }

func symbol(ticker, isin string) string {
	if t := strings.TrimSpace(ticker); t != "" {
		return t
	}
	return strings.ToUpper(strings.TrimSpace(isin))
}

// QuoteKey identifies the price lookup of the holding in a Quotes map.
// Holdings share a key only when they resolve through the same chain.
func (h Holding) QuoteKey() string { return QuoteKey(h.Ticker, h.ISIN, h.ManualPrice) }

// QuoteKey builds the Quotes key for a lookup by ticker, ISIN and manual
// override; manual ≤ 0 means none.
func QuoteKey(ticker, isin string, manual float64) string {
	key := strings.TrimSpace(ticker)
	if isin = strings.ToUpper(strings.TrimSpace(isin)); isin != "" {
		key += "|" + isin
	}
	if manual > 0 {
		key += "@" + strconv.FormatFloat(manual, 'f', -1, 64)
	}
	return key
}

// Validate checks the record invariants: a ticker, quantity ≥ 0, cost basis ≥ 0.
func (h Holding) Validate() error {
	if strings.TrimSpace(h.Ticker) == "" && strings.TrimSpace(h.ISIN) == "" {
		return ErrMissingTicker
	}
	if h.Quantity < 0 || math.IsNaN(h.Quantity) {
		return fmt.Errorf("%s: %w", h.Label(), ErrInvalidQuantity)
	}
	if h.CostBasis < 0 || math.IsNaN(h.CostBasis) {
		return fmt.Errorf("%s: %w", h.Label(), ErrInvalidCostBasis)
	}
	return nil
}

// WatchlistEntry is a tracked instrument that is not owned yet.
type WatchlistEntry struct {
	Name       string  `json:"name"`
	ISIN       string  `json:"isin,omitempty"`
	Ticker     string  `json:"ticker"`
	AlertPrice float64 `json:"alert_price,omitempty"`
}

func (w WatchlistEntry) Validate() error {
	if strings.TrimSpace(w.Ticker) == "" && strings.TrimSpace(w.ISIN) == "" {
		return ErrMissingTicker
	}
	if w.AlertPrice < 0 || math.IsNaN(w.AlertPrice) {
		return fmt.Errorf("%s: %w", w.Ticker, ErrInvalidAmount)
	}
	return nil
}

func (w WatchlistEntry) Symbol() string { return symbol(w.Ticker, w.ISIN) }

func (w WatchlistEntry) QuoteKey() string { return QuoteKey(w.Ticker, w.ISIN, 0) }

// ToHolding promotes the entry to an owned position.
func (w WatchlistEntry) ToHolding(quantity, costBasis float64, date time.Time) Holding {
	return Holding{
		Name:         w.Name,
		ISIN:         w.ISIN,
		Ticker:       w.Ticker,
		Quantity:     quantity,
		CostBasis:    costBasis,
		PurchaseDate: date,
	}
}

// DividendRecord is one net dividend payment.
type DividendRecord struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

func (d DividendRecord) Validate() error {
	if strings.TrimSpace(d.Ticker) == "" {
		return ErrMissingTicker
	}
	if d.Amount < 0 || math.IsNaN(d.Amount) {
		return fmt.Errorf("%s: %w", d.Ticker, ErrInvalidAmount)
	}
	return nil
}

// Portfolio is the whole application state. Each collection is persisted
// wholesale; the revisions identify the version last read from storage.
type Portfolio struct {
	Holdings  []Holding        `json:"holdings"`
	Watchlist []WatchlistEntry `json:"watchlist"`
	Dividends []DividendRecord `json:"dividends"`

	HoldingsRev  string `json:"-"`
	WatchlistRev string `json:"-"`
	DividendsRev string `json:"-"`
}

// Clone returns a copy that shares no slices with p.
func (p Portfolio) Clone() Portfolio {
	c := p
	c.Holdings = append([]Holding(nil), p.Holdings...)
	c.Watchlist = append([]WatchlistEntry(nil), p.Watchlist...)
	c.Dividends = append([]DividendRecord(nil), p.Dividends...)
	return c
}
