package valuation

import (
	"time"

	"PortfolioSentinel/internal/model"
)

// DefaultLowRatio is the fraction of the cost basis used as the low alert
// when a holding has none.
const DefaultLowRatio = 0.7

// Engine turns holdings and quotes into metrics and alerts. It holds no
// state between calls.
type Engine struct {
	// LowRatio derives the low alert from the cost basis when AlertLow is unset.
	LowRatio float64
	// HighRatio derives the high alert when AlertHigh is unset. 0 disables it.
	HighRatio float64
	// Now stamps snapshots; defaults to time.Now.
	Now func() time.Time
}

// NewEngine creates an Engine with the given ratios. A non-positive low
// ratio falls back to DefaultLowRatio.
func NewEngine(lowRatio, highRatio float64) *Engine {
	if lowRatio <= 0 {
		lowRatio = DefaultLowRatio
	}
	if highRatio < 0 {
		highRatio = 0
	}
	return &Engine{LowRatio: lowRatio, HighRatio: highRatio, Now: time.Now}
}

// EffectiveAlertLow returns the holding's low alert, or cost × LowRatio.
func (e *Engine) EffectiveAlertLow(h model.Holding) float64 {
	if h.AlertLow > 0 {
		return h.AlertLow
	}
	return h.CostBasis * e.LowRatio
}

// EffectiveAlertHigh returns the holding's high alert, or cost × HighRatio.
// 0 means the high alert is disabled.
func (e *Engine) EffectiveAlertHigh(h model.Holding) float64 {
	if h.AlertHigh > 0 {
		return h.AlertHigh
	}
	return h.CostBasis * e.HighRatio
}

// Evaluate values one holding at a resolved price.
func (e *Engine) Evaluate(h model.Holding, price float64) model.HoldingMetrics {
	costValue := h.CostBasis * h.Quantity
	pl := (price - h.CostBasis) * h.Quantity

	var plPct float64
	if costValue != 0 {
		plPct = pl / costValue * 100
	}

	return model.HoldingMetrics{
		Holding:            h,
		Price:              price,
		PriceOK:            true,
		MarketValue:        price * h.Quantity,
		CostValue:          costValue,
		UnrealizedPL:       pl,
		UnrealizedPLPct:    plPct,
		EffectiveAlertLow:  e.EffectiveAlertLow(h),
		EffectiveAlertHigh: e.EffectiveAlertHigh(h),
	}
}

// EvaluatePortfolio aggregates Evaluate over all holdings. Holdings without
// a resolved quote are listed in Unpriced and left out of both totals.
func (e *Engine) EvaluatePortfolio(holdings []model.Holding, quotes model.Quotes) model.PortfolioSnapshot {
	snap := model.PortfolioSnapshot{
		Holdings: make([]model.HoldingMetrics, 0, len(holdings)),
		At:       e.now(),
	}

	for _, h := range holdings {
		q := quotes.For(h.QuoteKey())
		if !q.OK {
			m := e.Evaluate(h, 0)
			m.PriceOK = false
			m.MarketValue, m.UnrealizedPL, m.UnrealizedPLPct = 0, 0, 0
			snap.Holdings = append(snap.Holdings, m)
			snap.Unpriced = append(snap.Unpriced, h.Symbol())
			continue
		}

		m := e.Evaluate(h, q.Price)
		if q.PrevClose > 0 {
			m.DayChange = (q.Price - q.PrevClose) * h.Quantity
		}
		snap.Holdings = append(snap.Holdings, m)

		snap.CurrentValue += m.MarketValue
		snap.CostValue += m.CostValue
		snap.DayChange += m.DayChange
	}

	snap.UnrealizedPL = snap.CurrentValue - snap.CostValue
	if snap.CostValue != 0 {
		snap.UnrealizedPLPct = snap.UnrealizedPL / snap.CostValue * 100
	}
	if base := snap.CurrentValue - snap.DayChange; base > 0 {
		snap.DayChangePct = snap.DayChange / base * 100
	}
	return snap
}

// CheckAlerts evaluates each holding, in order, against its thresholds.
// A holding fires at most one alert per call: the high threshold is only
// checked when the low one did not fire. A missing or zero price never fires.
func (e *Engine) CheckAlerts(holdings []model.Holding, quotes model.Quotes) []model.AlertEvent {
	var events []model.AlertEvent
	for _, h := range holdings {
		q := quotes.For(h.QuoteKey())
		if !q.Usable() {
			continue
		}
		price := q.Price
		low := e.EffectiveAlertLow(h)
		high := e.EffectiveAlertHigh(h)

		if price < low {
			events = append(events, model.AlertEvent{
				Kind: model.AlertLow, Name: h.Label(), Ticker: h.Symbol(),
				Price: price, Threshold: low,
			})
		} else if high > 0 && price >= high {
			events = append(events, model.AlertEvent{
				Kind: model.AlertHigh, Name: h.Label(), Ticker: h.Symbol(),
				Price: price, Threshold: high,
			})
		}
	}
	return events
}

// CheckWatchlist fires a watch alert for each entry whose price fell to or
// below its alert price.
func (e *Engine) CheckWatchlist(entries []model.WatchlistEntry, quotes model.Quotes) []model.AlertEvent {
	var events []model.AlertEvent
	for _, w := range entries {
		q := quotes.For(w.QuoteKey())
		if !q.Usable() || w.AlertPrice <= 0 {
			continue
		}
		if q.Price <= w.AlertPrice {
			name := w.Name
			if name == "" {
				name = w.Symbol()
			}
			events = append(events, model.AlertEvent{
				Kind: model.AlertWatch, Name: name, Ticker: w.Symbol(),
				Price: q.Price, Threshold: w.AlertPrice,
			})
		}
	}
	return events
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
