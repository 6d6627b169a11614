package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PortfolioSentinel/internal/model"
)

// MockSource returns controllable fixed data for development and testing.
type MockSource struct {
	Label     string
	Prices    map[string]float64
	PrevClose map[string]float64
	ISINs     map[string][]string // ISIN -> symbols
	Err       error

	mu    sync.Mutex
	calls []string
}

func (m *MockSource) Name() string {
	if m.Label != "" {
		return m.Label
	}
	return "mock"
}

func (m *MockSource) Quote(_ context.Context, symbol string) (model.Quote, error) {
	m.record(symbol)
	if m.Err != nil {
		return model.Unavailable(), m.Err
	}
	price, ok := m.Prices[symbol]
	if !ok {
		return model.Unavailable(), fmt.Errorf("%s %s: %w", m.Name(), symbol, ErrNoPrice)
	}
	return model.Quote{
		Symbol:    symbol,
		Price:     price,
		PrevClose: m.PrevClose[symbol],
		OK:        true,
		Source:    m.Name(),
		At:        time.Now(),
	}, nil
}

// Bars generates a gently rising daily series ending at the symbol's price.
func (m *MockSource) Bars(_ context.Context, symbol, period string) ([]model.Bar, error) {
	m.record("bars:" + symbol)
	if m.Err != nil {
		return nil, m.Err
	}
	price, ok := m.Prices[symbol]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", m.Name(), symbol, ErrNoPrice)
	}
	count := 30
	switch period {
	case "1d", "5d":
		count = 5
	case "1y":
		count = 250
	}
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := price * (1 + float64(i-count+1)*0.001)
		bars[i] = model.Bar{
			Time:   time.Now().AddDate(0, 0, -(count - 1 - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars, nil
}

func (m *MockSource) LookupISIN(_ context.Context, isin string) ([]string, error) {
	m.record("isin:" + isin)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ISINs[isin], nil
}

// Calls returns the symbols queried so far, in order.
func (m *MockSource) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockSource) record(s string) {
	m.mu.Lock()
	m.calls = append(m.calls, s)
	m.mu.Unlock()
}
