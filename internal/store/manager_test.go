package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioSentinel/internal/model"
)

// memBackend is an in-memory Backend with integer revisions. beforeWrite
// runs ahead of every write and can simulate a concurrent writer.
type memBackend struct {
	mu          sync.Mutex
	objects     map[string][]byte
	revs        map[string]int
	readErr     error
	writes      int
	beforeWrite func(b *memBackend, name string)
}

func newMemBackend() *memBackend {
	return &memBackend{objects: map[string][]byte{}, revs: map[string]int{}}
}

func (b *memBackend) put(name, data string) {
	b.objects[name] = []byte(data)
	b.revs[name]++
}

func (b *memBackend) Read(_ context.Context, name string) ([]byte, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr != nil {
		return nil, "", b.readErr
	}
	data, ok := b.objects[name]
	if !ok {
		return nil, "", ErrNotFound
	}
	return data, fmt.Sprint(b.revs[name]), nil
}

func (b *memBackend) Write(_ context.Context, name string, data []byte, rev string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.beforeWrite != nil {
		b.beforeWrite(b, name)
	}
	b.writes++
	current := ""
	if _, ok := b.objects[name]; ok {
		current = fmt.Sprint(b.revs[name])
	}
	if current != rev {
		return "", ErrConflict
	}
	b.put(name, string(data))
	return fmt.Sprint(b.revs[name]), nil
}

func newTestManager(t *testing.T, b Backend) *Manager {
	t.Helper()
	m := NewManager(b, Files{}, zerolog.Nop())
	require.NoError(t, m.Load(context.Background()))
	return m
}

func TestManager_LoadMissingIsEmpty(t *testing.T) {
	m := newTestManager(t, newMemBackend())
	p := m.Portfolio()
	assert.Empty(t, p.Holdings)
	assert.Empty(t, p.Watchlist)
	assert.Empty(t, p.Dividends)
}

func TestManager_LoadFailureDegrades(t *testing.T) {
	b := newMemBackend()
	b.readErr = errors.New("network down")
	m := NewManager(b, Files{}, zerolog.Nop())

	err := m.Load(context.Background())
	assert.Error(t, err)
	assert.Empty(t, m.Holdings())
}

func TestManager_HoldingCRUD(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	m := newTestManager(t, b)

	require.NoError(t, m.AddHolding(ctx, model.Holding{Name: "LVMH", Ticker: "MC.PA", CostBasis: 600, Quantity: 2}))
	require.NoError(t, m.AddHolding(ctx, model.Holding{Name: "Air Liquide", Ticker: "AI.PA", CostBasis: 150, Quantity: 5}))
	require.NoError(t, m.UpdateHolding(ctx, 1, model.Holding{Name: "Air Liquide", Ticker: "AI.PA", CostBasis: 150, Quantity: 7}))
	require.NoError(t, m.DeleteHolding(ctx, 0))

	holdings := m.Holdings()
	require.Len(t, holdings, 1)
	assert.Equal(t, 7.0, holdings[0].Quantity)

	persisted, err := DecodeHoldings(bytes.NewReader(b.objects[DefaultFiles.Holdings]))
	require.NoError(t, err)
	assert.Equal(t, holdings, persisted)

	assert.ErrorIs(t, m.DeleteHolding(ctx, 5), ErrNoSuchIndex)
	assert.ErrorIs(t, m.AddHolding(ctx, model.Holding{Ticker: "X", Quantity: -1}), model.ErrInvalidQuantity)
	assert.ErrorIs(t, m.AddHolding(ctx, model.Holding{Name: "nothing"}), model.ErrMissingTicker)
}

func TestManager_ConflictReappliesOnFreshState(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	b.put(DefaultFiles.Holdings, "Ticker,Qté\nMC.PA,1\n")
	m := newTestManager(t, b)

	// another process appends a row just before our first write
	once := true
	b.beforeWrite = func(b *memBackend, name string) {
		if once {
			once = false
			b.put(name, "Ticker,Qté\nMC.PA,1\nSAN.PA,4\n")
		}
	}

	require.NoError(t, m.AddHolding(ctx, model.Holding{Ticker: "AI.PA", Quantity: 3}))

	var tickers []string
	for _, h := range m.Holdings() {
		tickers = append(tickers, h.Ticker)
	}
	assert.Equal(t, []string{"MC.PA", "SAN.PA", "AI.PA"}, tickers)
	assert.Equal(t, 2, b.writes)
}

func TestManager_ConflictGivesUp(t *testing.T) {
	b := newMemBackend()
	m := newTestManager(t, b)
	b.beforeWrite = func(b *memBackend, name string) { b.put(name, "Ticker\nZZ\n") }

	err := m.AddHolding(context.Background(), model.Holding{Ticker: "AI.PA", Quantity: 1})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, DefaultMaxAttempts, b.writes)
}

func tickersOf(holdings []model.Holding) []string {
	var out []string
	for _, h := range holdings {
		out = append(out, h.Ticker)
	}
	return out
}

// conflictOnce makes the first write lose the race against content.
func conflictOnce(b *memBackend, content string) {
	once := true
	b.beforeWrite = func(b *memBackend, name string) {
		if once {
			once = false
			b.put(name, content)
		}
	}
}

func TestManager_DeleteAfterReloadRemovesSameRow(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	b.put(DefaultFiles.Holdings, "Ticker,Qté\nMC.PA,1\nAI.PA,3\n")
	m := newTestManager(t, b)

	// a row is inserted ahead of the one being deleted
	conflictOnce(b, "Ticker,Qté\nSAN.PA,4\nMC.PA,1\nAI.PA,3\n")

	require.NoError(t, m.DeleteHolding(ctx, 1))
	assert.Equal(t, []string{"SAN.PA", "MC.PA"}, tickersOf(m.Holdings()))
}

func TestManager_UpdateAfterReloadTargetsSameRow(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	b.put(DefaultFiles.Holdings, "Ticker,Qté\nMC.PA,1\nAI.PA,3\n")
	m := newTestManager(t, b)

	conflictOnce(b, "Ticker,Qté\nSAN.PA,4\nMC.PA,1\nAI.PA,3\n")

	require.NoError(t, m.UpdateHolding(ctx, 1, model.Holding{Ticker: "AI.PA", Quantity: 9}))
	holdings := m.Holdings()
	assert.Equal(t, []string{"SAN.PA", "MC.PA", "AI.PA"}, tickersOf(holdings))
	assert.Equal(t, 4.0, holdings[0].Quantity)
	assert.Equal(t, 9.0, holdings[2].Quantity)
}

func TestManager_DeleteOfVanishedRowConflicts(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	b.put(DefaultFiles.Holdings, "Ticker,Qté\nMC.PA,1\nAI.PA,3\n")
	m := newTestManager(t, b)

	// the targeted row was removed elsewhere
	conflictOnce(b, "Ticker,Qté\nMC.PA,1\n")

	assert.ErrorIs(t, m.DeleteHolding(ctx, 1), ErrConflict)
	assert.Equal(t, []string{"MC.PA"}, tickersOf(m.Holdings()))
}

func TestManager_DeleteWatchAndDividendAfterReload(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	b.put(DefaultFiles.Watchlist, "Ticker,Seuil_Alerte\nSAN.PA,85\nORA.PA,9\n")
	b.put(DefaultFiles.Dividends, "Ticker,Date,Montant\nMC.PA,2024-04-25,13\nAI.PA,2024-05-15,3.2\n")
	m := newTestManager(t, b)

	conflictOnce(b, "Ticker,Seuil_Alerte\nBN.PA,60\nSAN.PA,85\nORA.PA,9\n")
	require.NoError(t, m.DeleteWatch(ctx, 0))
	var watched []string
	for _, w := range m.Watchlist() {
		watched = append(watched, w.Ticker)
	}
	assert.Equal(t, []string{"BN.PA", "ORA.PA"}, watched)

	conflictOnce(b, "Ticker,Date,Montant\nBN.PA,2024-05-02,2.15\nMC.PA,2024-04-25,13\nAI.PA,2024-05-15,3.2\n")
	require.NoError(t, m.DeleteDividend(ctx, 1))
	var paid []string
	for _, d := range m.Dividends() {
		paid = append(paid, d.Ticker)
	}
	assert.Equal(t, []string{"BN.PA", "MC.PA"}, paid)
}

func TestManager_BuyWatch(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newMemBackend())
	require.NoError(t, m.AddWatch(ctx, model.WatchlistEntry{Name: "Sanofi", Ticker: "SAN.PA", AlertPrice: 85}))
	require.NoError(t, m.AddWatch(ctx, model.WatchlistEntry{Name: "Orange", Ticker: "ORA.PA", AlertPrice: 9}))

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	h, err := m.BuyWatch(ctx, 0, 10, 84.5, date)
	require.NoError(t, err)
	assert.Equal(t, "SAN.PA", h.Ticker)

	p := m.Portfolio()
	require.Len(t, p.Holdings, 1)
	assert.Equal(t, model.Holding{Name: "Sanofi", Ticker: "SAN.PA", Quantity: 10, CostBasis: 84.5, PurchaseDate: date}, p.Holdings[0])
	require.Len(t, p.Watchlist, 1)
	assert.Equal(t, "ORA.PA", p.Watchlist[0].Ticker)

	_, err = m.BuyWatch(ctx, 3, 1, 1, date)
	assert.ErrorIs(t, err, ErrNoSuchIndex)
	_, err = m.BuyWatch(ctx, 0, -1, 1, date)
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)
}

func TestManager_DividendsAndImport(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newMemBackend())

	require.NoError(t, m.AddDividend(ctx, model.DividendRecord{Ticker: "TTE.PA", Amount: 12}))
	require.NoError(t, m.AddDividend(ctx, model.DividendRecord{Ticker: "TTE.PA", Amount: 13}))
	require.NoError(t, m.DeleteDividend(ctx, 0))
	assert.Len(t, m.Dividends(), 1)

	n, err := m.ImportHoldings(ctx, strings.NewReader("Nom,Ticker,PRU,Qté\nA,A.PA,1,2\nB,B.PA,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var buf bytes.Buffer
	require.NoError(t, m.ExportHoldings(&buf))
	assert.Contains(t, buf.String(), "B,,B.PA,3,4")

	_, err = m.ImportHoldings(ctx, strings.NewReader("Nom\nA\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Len(t, m.Holdings(), 2, "failed import leaves holdings untouched")
}
