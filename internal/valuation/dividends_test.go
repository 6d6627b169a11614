package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioSentinel/internal/model"
)

func TestDividendYields(t *testing.T) {
	day := func(m time.Month) time.Time { return time.Date(2025, m, 15, 0, 0, 0, 0, time.UTC) }
	holdings := []model.Holding{
		{Name: "TotalEnergies", Ticker: "TTE.PA", Quantity: 20, CostBasis: 50},
		{Name: "LVMH", Ticker: "MC.PA", Quantity: 5, CostBasis: 700},
		{Name: "TotalEnergies (PEA)", Ticker: "TTE.PA", Quantity: 20, CostBasis: 60},
	}
	dividends := []model.DividendRecord{
		{Ticker: "OLD.PA", Date: day(1), Amount: 4},
		{Ticker: "TTE.PA", Date: day(4), Amount: 30},
		{Ticker: "TTE.PA", Date: day(10), Amount: 36},
	}

	rows := DividendYields(holdings, dividends)
	require.Len(t, rows, 2)

	assert.Equal(t, "TTE.PA", rows[0].Ticker)
	assert.Equal(t, 66.0, rows[0].Total)
	assert.Equal(t, 2200.0, rows[0].CostValue)
	assert.InDelta(t, 3.0, rows[0].YieldPct, 1e-9)
	assert.Equal(t, 2, rows[0].Payments)

	assert.Equal(t, "OLD.PA", rows[1].Ticker)
	assert.Equal(t, 0.0, rows[1].YieldPct)
}

func TestDividendYields_Empty(t *testing.T) {
	assert.Empty(t, DividendYields(nil, nil))
	assert.Empty(t, DividendYields([]model.Holding{{Ticker: "A", Quantity: 1, CostBasis: 1}}, nil))
}
