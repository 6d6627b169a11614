package calculator

import (
	"PortfolioSentinel/internal/model"
)

// Summary describes a price series for the history view.
type Summary struct {
	First      float64 `json:"first"`
	Last       float64 `json:"last"`
	ChangePct  float64 `json:"change_pct"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Position   float64 `json:"position"` // 0.0 ~ 1.0 within [Low, High]
	SMA20      float64 `json:"sma20,omitempty"`
	SMA50      float64 `json:"sma50,omitempty"`
	RSI14      float64 `json:"rsi14"`
	Volatility float64 `json:"volatility,omitempty"`
	Rising     bool    `json:"rising"`
}

// Summarize computes the indicators shown next to a history chart.
// Indicators that lack data are left at zero.
func Summarize(bars []model.Bar) Summary {
	var s Summary
	if len(bars) == 0 {
		return s
	}
	s.First = bars[0].Close
	s.Last = bars[len(bars)-1].Close
	if s.First > 0 {
		s.ChangePct = (s.Last - s.First) / s.First * 100
	}
	// Green when the period closed at or above its open, as the dashboard colored it.
	s.Rising = s.Last >= s.First

	if h, l, err := CalculateRange(bars); err == nil {
		s.High, s.Low = h, l
		s.Position, _ = CalculatePosition(s.Last, h, l)
	}
	if v, err := CalculateBarsSMA(bars, 20); err == nil {
		s.SMA20 = v
	}
	if v, err := CalculateBarsSMA(bars, 50); err == nil {
		s.SMA50 = v
	}
	if v, err := CalculateRSI(bars, 14); err == nil {
		s.RSI14 = v
	}
	if v, err := CalculateVolatility(bars); err == nil {
		s.Volatility = v
	}
	return s
}
