package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioSentinel/internal/model"
)

func TestPriceFor_FirstSourceWins(t *testing.T) {
	fast := &MockSource{Label: "fast", Prices: map[string]float64{"MC.PA": 950}}
	slow := &MockSource{Label: "slow", Prices: map[string]float64{"MC.PA": 1}}
	r := NewResolver(zerolog.Nop(), fast, slow)

	q := r.PriceFor(context.Background(), "MC.PA", "FR0000121014", 0)
	require.True(t, q.OK)
	assert.Equal(t, 950.0, q.Price)
	assert.Equal(t, "fast", q.Source)
	assert.Empty(t, slow.Calls())
}

func TestPriceFor_FallsBackToSecondSource(t *testing.T) {
	fast := &MockSource{Label: "fast", Err: errors.New("boom")}
	chart := &MockSource{Label: "chart", Prices: map[string]float64{"MC.PA": 940}, PrevClose: map[string]float64{"MC.PA": 930}}
	r := NewResolver(zerolog.Nop(), fast, chart)

	q := r.PriceFor(context.Background(), "MC.PA", "", 0)
	require.True(t, q.OK)
	assert.Equal(t, "chart", q.Source)
	assert.Equal(t, 930.0, q.PrevClose)
}

func TestPriceFor_ISINVariants(t *testing.T) {
	src := &MockSource{Prices: map[string]float64{"FR0000121014.PA": 900}}
	r := NewResolver(zerolog.Nop(), src)

	q := r.PriceFor(context.Background(), "LVMH", "fr0000121014", 0)
	require.True(t, q.OK)
	assert.Equal(t, 900.0, q.Price)
	assert.Equal(t, []string{"LVMH", "FR0000121014", "FR0000121014.PA"}, src.Calls())
}

func TestPriceFor_ISINLookup(t *testing.T) {
	src := &MockSource{Prices: map[string]float64{"AI.PA": 160}}
	lookup := &MockSource{Label: "lookup", ISINs: map[string][]string{"FR0000120073": {"AI.PA"}}}
	r := NewResolver(zerolog.Nop(), src)
	r.Suffixes = nil
	r.Lookups = []ISINLookup{lookup}

	q := r.PriceFor(context.Background(), "", "FR0000120073", 0)
	require.True(t, q.OK)
	assert.Equal(t, 160.0, q.Price)
	assert.Equal(t, "AI.PA", q.Symbol)
}

func TestPriceFor_ScrapeThenManual(t *testing.T) {
	src := &MockSource{}
	scrape := &MockSource{Label: "scrape", Prices: map[string]float64{"FR0010315770": 42}}
	r := NewResolver(zerolog.Nop(), src)
	r.Scrape = scrape

	q := r.PriceFor(context.Background(), "CW8.PA", "FR0010315770", 500)
	require.True(t, q.OK)
	assert.Equal(t, "scrape", q.Source)
	assert.Equal(t, 42.0, q.Price)

	q = r.PriceFor(context.Background(), "CW8.PA", "FR0000000000", 500)
	require.True(t, q.OK)
	assert.Equal(t, "manual", q.Source)
	assert.Equal(t, 500.0, q.Price)
}

func TestPriceFor_Unavailable(t *testing.T) {
	src := &MockSource{Err: ErrNoPrice}
	r := NewResolver(zerolog.Nop(), src)

	q := r.PriceFor(context.Background(), "GONE.PA", "", 0)
	assert.False(t, q.OK)
	assert.Equal(t, model.Unavailable(), q)

	q = r.PriceFor(context.Background(), "", "", 0)
	assert.False(t, q.OK)
}

func TestPriceFor_ConfirmedZero(t *testing.T) {
	worthless := &MockSource{Label: "worthless", Prices: map[string]float64{"ZERO": 0}}
	other := &MockSource{Label: "other", Prices: map[string]float64{"ZERO": 12}}
	r := NewResolver(zerolog.Nop(), worthless, other)

	q := r.PriceFor(context.Background(), "ZERO", "", 5)
	require.True(t, q.OK)
	assert.Equal(t, 0.0, q.Price)
	assert.Equal(t, "worthless", q.Source)
	assert.False(t, q.Usable())
	assert.Empty(t, other.Calls())
}

func TestPriceFor_PrevCloseFromHistory(t *testing.T) {
	fast := &MockSource{Label: "fast", Prices: map[string]float64{"MC.PA": 950}}
	history := &MockSource{Prices: map[string]float64{"MC.PA": 950}}
	r := NewResolver(zerolog.Nop(), fast)
	r.History = history

	q := r.PriceFor(context.Background(), "MC.PA", "", 0)
	require.True(t, q.OK)
	assert.Greater(t, q.PrevClose, 0.0)
	assert.Less(t, q.PrevClose, 950.0)
}

func TestResolve_SequentialAndDeduplicated(t *testing.T) {
	src := &MockSource{Prices: map[string]float64{"A": 1, "B": 2}}
	r := NewResolver(zerolog.Nop(), src)
	r.Suffixes = nil

	holdings := []model.Holding{
		{Ticker: "A", Quantity: 1},
		{Ticker: "B", Quantity: 1},
		{Ticker: "A", Quantity: 2},
		{Ticker: "C", Quantity: 1},
	}
	quotes := r.Resolve(context.Background(), holdings)
	assert.Len(t, quotes, 3)
	assert.True(t, quotes["A"].OK)
	assert.True(t, quotes["B"].OK)
	assert.False(t, quotes["C"].OK)
	assert.Equal(t, []string{"A", "B", "C"}, src.Calls())
}

func TestResolve_ISINOnlyHoldingsKeepTheirOwnQuote(t *testing.T) {
	src := &MockSource{Prices: map[string]float64{"FR0000121014": 700, "FR0000120073": 150}}
	r := NewResolver(zerolog.Nop(), src)

	holdings := []model.Holding{
		{Name: "LVMH", ISIN: "FR0000121014", Quantity: 1},
		{Name: "Air Liquide", ISIN: "FR0000120073", Quantity: 1},
	}
	quotes := r.Resolve(context.Background(), holdings)
	require.Len(t, quotes, 2)
	assert.Equal(t, 700.0, quotes.For(holdings[0].QuoteKey()).Price)
	assert.Equal(t, 150.0, quotes.For(holdings[1].QuoteKey()).Price)
	assert.Equal(t, []string{"FR0000121014", "FR0000120073"}, src.Calls())
}

func TestResolve_ManualPriceIsPerHolding(t *testing.T) {
	r := NewResolver(zerolog.Nop(), &MockSource{})
	r.Suffixes = nil

	holdings := []model.Holding{
		{Ticker: "FONDS", Quantity: 1, ManualPrice: 10},
		{Ticker: "FONDS", Quantity: 1, ManualPrice: 25},
		{Ticker: "FONDS", Quantity: 1},
	}
	quotes := r.Resolve(context.Background(), holdings)
	require.Len(t, quotes, 3)
	assert.Equal(t, 10.0, quotes.For(holdings[0].QuoteKey()).Price)
	assert.Equal(t, 25.0, quotes.For(holdings[1].QuoteKey()).Price)
	assert.False(t, quotes.For(holdings[2].QuoteKey()).OK)
}

func TestResolveWatchlist(t *testing.T) {
	src := &MockSource{Prices: map[string]float64{"SAN.PA": 90, "FR0000120578": 88}}
	r := NewResolver(zerolog.Nop(), src)
	entries := []model.WatchlistEntry{{Ticker: "SAN.PA", AlertPrice: 80}, {ISIN: "FR0000120578"}}
	quotes := r.ResolveWatchlist(context.Background(), entries)
	assert.Equal(t, 90.0, quotes["SAN.PA"].Price)
	assert.Equal(t, 88.0, quotes.For(entries[1].QuoteKey()).Price)
}

func TestBars_NoHistory(t *testing.T) {
	r := NewResolver(zerolog.Nop())
	_, err := r.Bars(context.Background(), "MC.PA", "1y")
	assert.Error(t, err)
}
