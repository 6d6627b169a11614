package model

import "time"

// HoldingMetrics holds the valuation of one holding at one price.
type HoldingMetrics struct {
	Holding            Holding `json:"holding"`
	Price              float64 `json:"price"`
	PriceOK            bool    `json:"price_ok"`
	MarketValue        float64 `json:"market_value"`
	CostValue          float64 `json:"cost_value"`
	UnrealizedPL       float64 `json:"unrealized_pl"`
	UnrealizedPLPct    float64 `json:"unrealized_pl_pct"`
	DayChange          float64 `json:"day_change"`
	EffectiveAlertLow  float64 `json:"effective_alert_low"`
	EffectiveAlertHigh float64 `json:"effective_alert_high"` // 0 = disabled
}

// PortfolioSnapshot aggregates holding metrics at one instant.
type PortfolioSnapshot struct {
	Holdings        []HoldingMetrics `json:"holdings"`
	CurrentValue    float64          `json:"current_value"`
	CostValue       float64          `json:"cost_value"`
	UnrealizedPL    float64          `json:"unrealized_pl"`
	UnrealizedPLPct float64          `json:"unrealized_pl_pct"`
	DayChange       float64          `json:"day_change"`
	DayChangePct    float64          `json:"day_change_pct"`
	Unpriced        []string         `json:"unpriced,omitempty"`
	At              time.Time        `json:"at"`
}

// DividendYield is the per-ticker dividend total and its yield on cost.
type DividendYield struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name,omitempty"`
	Total     float64 `json:"total"`
	CostValue float64 `json:"cost_value"`
	YieldPct  float64 `json:"yield_pct"`
	Payments  int     `json:"payments"`
}
