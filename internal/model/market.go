package model

import "time"

// Bar represents a single candlestick bar.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Quote is the outcome of a price lookup. OK distinguishes a failed lookup
// from an instrument that is genuinely priced at zero.
type Quote struct {
	Symbol    string    `json:"symbol,omitempty"`
	Price     float64   `json:"price"`
	PrevClose float64   `json:"prev_close,omitempty"`
	OK        bool      `json:"ok"`
	Source    string    `json:"source,omitempty"`
	At        time.Time `json:"at"`
}

// Unavailable is the zero-value result of a failed lookup.
func Unavailable() Quote { return Quote{} }

// Usable reports whether the quote carries a positive price.
func (q Quote) Usable() bool { return q.OK && q.Price > 0 }

// Quotes maps a QuoteKey to its resolved quote.
type Quotes map[string]Quote

// For returns the quote stored under key, or Unavailable.
func (q Quotes) For(key string) Quote {
	if q == nil {
		return Unavailable()
	}
	return q[key]
}
