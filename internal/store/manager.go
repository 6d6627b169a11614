package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/model"
)

// ErrNoSuchIndex is returned when a mutation addresses a row that does
// not exist.
var ErrNoSuchIndex = errors.New("no such row")

// DefaultMaxAttempts bounds the reload-and-retry loop on write conflicts.
const DefaultMaxAttempts = 3

// Files names the objects of each collection in the backend.
type Files struct {
	Holdings  string `yaml:"holdings"`
	Watchlist string `yaml:"watchlist"`
	Dividends string `yaml:"dividends"`
}

// DefaultFiles are the file names the dashboard export uses.
var DefaultFiles = Files{
	Holdings:  "portefeuille_data.csv",
	Watchlist: "watchlist.csv",
	Dividends: "dividendes.csv",
}

// Manager owns the portfolio state and persists every mutation. Each
// collection is written whole with the revision last read; a conflicting
// write reloads the collection, reapplies the mutation and retries.
type Manager struct {
	mu          sync.Mutex
	backend     Backend
	files       Files
	state       model.Portfolio
	maxAttempts int
	log         zerolog.Logger
}

// NewManager creates a Manager. Call Load before use.
func NewManager(backend Backend, files Files, log zerolog.Logger) *Manager {
	if files.Holdings == "" {
		files.Holdings = DefaultFiles.Holdings
	}
	if files.Watchlist == "" {
		files.Watchlist = DefaultFiles.Watchlist
	}
	if files.Dividends == "" {
		files.Dividends = DefaultFiles.Dividends
	}
	return &Manager{
		backend:     backend,
		files:       files,
		maxAttempts: DefaultMaxAttempts,
		log:         log.With().Str("component", "store").Logger(),
	}
}

// collection binds one persisted slice of the state to its codec.
type collection[T any] struct {
	name   string
	decode func(io.Reader) ([]T, error)
	encode func(io.Writer, []T) error
	items  *[]T
	rev    *string
}

func (m *Manager) holdings() collection[model.Holding] {
	return collection[model.Holding]{m.files.Holdings, DecodeHoldings, EncodeHoldings, &m.state.Holdings, &m.state.HoldingsRev}
}

func (m *Manager) watchlist() collection[model.WatchlistEntry] {
	return collection[model.WatchlistEntry]{m.files.Watchlist, DecodeWatchlist, EncodeWatchlist, &m.state.Watchlist, &m.state.WatchlistRev}
}

func (m *Manager) dividends() collection[model.DividendRecord] {
	return collection[model.DividendRecord]{m.files.Dividends, DecodeDividends, EncodeDividends, &m.state.Dividends, &m.state.DividendsRev}
}

// Load reads every collection. A missing object is an empty collection;
// other failures are logged, leave that collection empty and are returned
// joined.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return errors.Join(
		load(ctx, m, m.holdings()),
		load(ctx, m, m.watchlist()),
		load(ctx, m, m.dividends()),
	)
}

func load[T any](ctx context.Context, m *Manager, c collection[T]) error {
	items, rev, err := fetch(ctx, m.backend, c)
	if err != nil {
		m.log.Warn().Err(err).Str("file", c.name).Msg("load failed, starting empty")
		*c.items, *c.rev = nil, ""
		return err
	}
	*c.items, *c.rev = items, rev
	m.log.Info().Str("file", c.name).Int("rows", len(items)).Msg("loaded")
	return nil
}

func fetch[T any](ctx context.Context, backend Backend, c collection[T]) ([]T, string, error) {
	data, rev, err := backend.Read(ctx, c.name)
	if errors.Is(err, ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", c.name, err)
	}
	items, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", c.name, err)
	}
	return items, rev, nil
}

// mutate applies fn to a copy of the collection and persists the result.
// Callers hold m.mu.
func mutate[T any](ctx context.Context, m *Manager, c collection[T], fn func([]T) ([]T, error)) error {
	for attempt := 1; ; attempt++ {
		next, err := fn(append([]T(nil), *c.items...))
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := c.encode(&buf, next); err != nil {
			return fmt.Errorf("encode %s: %w", c.name, err)
		}

		rev, err := m.backend.Write(ctx, c.name, buf.Bytes(), *c.rev)
		if err == nil {
			*c.items, *c.rev = next, rev
			return nil
		}
		if !errors.Is(err, ErrConflict) || attempt >= m.maxAttempts {
			return fmt.Errorf("write %s: %w", c.name, err)
		}

		m.log.Warn().Str("file", c.name).Int("attempt", attempt).Msg("write conflict, reloading")
		items, fresh, rerr := fetch(ctx, m.backend, c)
		if rerr != nil {
			return rerr
		}
		*c.items, *c.rev = items, fresh
	}
}

// Portfolio returns a copy of the current state.
func (m *Manager) Portfolio() model.Portfolio {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

func (m *Manager) Holdings() []model.Holding {
	return m.Portfolio().Holdings
}

func (m *Manager) Watchlist() []model.WatchlistEntry {
	return m.Portfolio().Watchlist
}

func (m *Manager) Dividends() []model.DividendRecord {
	return m.Portfolio().Dividends
}

// ExportHoldings writes the holdings as CSV.
func (m *Manager) ExportHoldings(w io.Writer) error {
	return EncodeHoldings(w, m.Holdings())
}

func (m *Manager) AddHolding(ctx context.Context, h model.Holding) error {
	if err := h.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return mutate(ctx, m, m.holdings(), func(hs []model.Holding) ([]model.Holding, error) {
		return append(hs, h), nil
	})
}

func (m *Manager) UpdateHolding(ctx context.Context, i int, h model.Holding) error {
	if err := h.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	target, err := rowAt(m.state.Holdings, i, "holding")
	if err != nil {
		return err
	}
	return mutate(ctx, m, m.holdings(), func(hs []model.Holding) ([]model.Holding, error) {
		j, err := relocate(hs, i, target, sameHolding, "holding")
		if err != nil {
			return nil, err
		}
		hs[j] = h
		return hs, nil
	})
}

func (m *Manager) DeleteHolding(ctx context.Context, i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, err := rowAt(m.state.Holdings, i, "holding")
	if err != nil {
		return err
	}
	return mutate(ctx, m, m.holdings(), func(hs []model.Holding) ([]model.Holding, error) {
		return removeMatching(hs, i, target, sameHolding, "holding")
	})
}

// ReplaceHoldings swaps the whole holdings list, as a CSV restore does.
func (m *Manager) ReplaceHoldings(ctx context.Context, holdings []model.Holding) error {
	for _, h := range holdings {
		if err := h.Validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return mutate(ctx, m, m.holdings(), func([]model.Holding) ([]model.Holding, error) {
		return append([]model.Holding(nil), holdings...), nil
	})
}

// ImportHoldings decodes a CSV export and replaces the holdings with it.
func (m *Manager) ImportHoldings(ctx context.Context, r io.Reader) (int, error) {
	holdings, err := DecodeHoldings(r)
	if err != nil {
		return 0, err
	}
	if err := m.ReplaceHoldings(ctx, holdings); err != nil {
		return 0, err
	}
	return len(holdings), nil
}

func (m *Manager) AddWatch(ctx context.Context, e model.WatchlistEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return mutate(ctx, m, m.watchlist(), func(ws []model.WatchlistEntry) ([]model.WatchlistEntry, error) {
		return append(ws, e), nil
	})
}

func (m *Manager) DeleteWatch(ctx context.Context, i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, err := rowAt(m.state.Watchlist, i, "watchlist entry")
	if err != nil {
		return err
	}
	return mutate(ctx, m, m.watchlist(), func(ws []model.WatchlistEntry) ([]model.WatchlistEntry, error) {
		return removeMatching(ws, i, target, sameEntry, "watchlist entry")
	})
}

// BuyWatch promotes watchlist entry i to a holding: the holding is
// appended first, then the entry is removed from the watchlist.
func (m *Manager) BuyWatch(ctx context.Context, i int, quantity, costBasis float64, date time.Time) (model.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := rowAt(m.state.Watchlist, i, "watchlist entry")
	if err != nil {
		return model.Holding{}, err
	}
	h := entry.ToHolding(quantity, costBasis, date)
	if err := h.Validate(); err != nil {
		return model.Holding{}, err
	}

	err = mutate(ctx, m, m.holdings(), func(hs []model.Holding) ([]model.Holding, error) {
		return append(hs, h), nil
	})
	if err != nil {
		return model.Holding{}, err
	}
	err = mutate(ctx, m, m.watchlist(), func(ws []model.WatchlistEntry) ([]model.WatchlistEntry, error) {
		j, ok := find(ws, i, entry, sameEntry)
		if !ok {
			// already removed elsewhere
			return ws, nil
		}
		return append(ws[:j], ws[j+1:]...), nil
	})
	return h, err
}

func (m *Manager) AddDividend(ctx context.Context, d model.DividendRecord) error {
	if err := d.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return mutate(ctx, m, m.dividends(), func(ds []model.DividendRecord) ([]model.DividendRecord, error) {
		return append(ds, d), nil
	})
}

func (m *Manager) DeleteDividend(ctx context.Context, i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, err := rowAt(m.state.Dividends, i, "dividend")
	if err != nil {
		return err
	}
	return mutate(ctx, m, m.dividends(), func(ds []model.DividendRecord) ([]model.DividendRecord, error) {
		return removeMatching(ds, i, target, sameDividend, "dividend")
	})
}

func rowAt[T any](items []T, i int, what string) (T, error) {
	if i < 0 || i >= len(items) {
		var zero T
		return zero, fmt.Errorf("%s %d: %w", what, i, ErrNoSuchIndex)
	}
	return items[i], nil
}

// find locates target in items, preferring position i. Indexes address
// the state the caller saw; after a conflict reload the row may have
// moved.
func find[T any](items []T, i int, target T, same func(a, b T) bool) (int, bool) {
	if i >= 0 && i < len(items) && same(items[i], target) {
		return i, true
	}
	for j := range items {
		if same(items[j], target) {
			return j, true
		}
	}
	return -1, false
}

// relocate is find for mutations that must not touch another row: a
// target that vanished or changed surfaces as ErrConflict.
func relocate[T any](items []T, i int, target T, same func(a, b T) bool, what string) (int, error) {
	j, ok := find(items, i, target, same)
	if !ok {
		return -1, fmt.Errorf("%s %d changed concurrently: %w", what, i, ErrConflict)
	}
	return j, nil
}

func removeMatching[T any](items []T, i int, target T, same func(a, b T) bool, what string) ([]T, error) {
	j, err := relocate(items, i, target, same, what)
	if err != nil {
		return nil, err
	}
	return append(items[:j], items[j+1:]...), nil
}

func sameHolding(a, b model.Holding) bool {
	da, db := a.PurchaseDate, b.PurchaseDate
	a.PurchaseDate, b.PurchaseDate = time.Time{}, time.Time{}
	return a == b && da.Equal(db)
}

func sameEntry(a, b model.WatchlistEntry) bool { return a == b }

func sameDividend(a, b model.DividendRecord) bool {
	return a.Ticker == b.Ticker && a.Amount == b.Amount && a.Date.Equal(b.Date)
}
