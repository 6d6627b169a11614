package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/model"
)

// DefaultSuffixes are the venue suffixes tried after a bare ISIN.
var DefaultSuffixes = []string{".PA", ".AS", ".DE", ".MI"}

// Resolver walks the price fallback chain:
//
//  1. the ticker against every source;
//  2. the ISIN, ISIN + venue suffixes and the symbols the ISIN maps to;
//  3. the scrape source keyed by ISIN;
//  4. the manual override.
//
// Every step is a single best-effort attempt under StepTimeout; failures
// are logged and treated as "no value".
type Resolver struct {
	Sources     []Source
	Lookups     []ISINLookup
	Scrape      Source
	History     BarSource
	Suffixes    []string
	StepTimeout time.Duration

	log zerolog.Logger
}

// NewResolver creates a Resolver over the given sources, in priority order.
func NewResolver(log zerolog.Logger, sources ...Source) *Resolver {
	return &Resolver{
		Sources:     sources,
		Suffixes:    DefaultSuffixes,
		StepTimeout: 10 * time.Second,
		log:         log.With().Str("component", "resolver").Logger(),
	}
}

// PriceFor resolves one instrument. manual ≤ 0 means no override. The
// result has OK=false when nothing could be determined; OK with a zero
// price is a value a source confirmed.
func (r *Resolver) PriceFor(ctx context.Context, ticker, isin string, manual float64) model.Quote {
	ticker = strings.TrimSpace(ticker)
	isin = strings.ToUpper(strings.TrimSpace(isin))

	if ticker != "" {
		if q, ok := r.trySources(ctx, ticker); ok {
			return r.withPrevClose(ctx, q)
		}
	}

	if isin != "" {
		for _, sym := range r.isinCandidates(ctx, isin) {
			if q, ok := r.trySources(ctx, sym); ok {
				return r.withPrevClose(ctx, q)
			}
		}
		if r.Scrape != nil {
			if q, ok := r.try(ctx, r.Scrape, isin); ok {
				return q
			}
		}
	}

	if manual > 0 {
		r.log.Debug().Str("ticker", ticker).Float64("price", manual).Msg("using manual price")
		return model.Quote{Symbol: ticker, Price: manual, OK: true, Source: "manual", At: time.Now()}
	}

	r.log.Warn().Str("ticker", ticker).Str("isin", isin).Msg("price unavailable")
	return model.Unavailable()
}

// Resolve prices every holding in turn, keyed by Holding.QuoteKey.
// Holdings sharing a key are looked up once.
func (r *Resolver) Resolve(ctx context.Context, holdings []model.Holding) model.Quotes {
	quotes := make(model.Quotes, len(holdings))
	for _, h := range holdings {
		if ctx.Err() != nil {
			break
		}
		key := h.QuoteKey()
		if _, done := quotes[key]; done {
			continue
		}
		quotes[key] = r.PriceFor(ctx, h.Ticker, h.ISIN, h.ManualPrice)
	}
	return quotes
}

// ResolveWatchlist prices every watchlist entry in turn.
func (r *Resolver) ResolveWatchlist(ctx context.Context, entries []model.WatchlistEntry) model.Quotes {
	quotes := make(model.Quotes, len(entries))
	for _, w := range entries {
		if ctx.Err() != nil {
			break
		}
		key := w.QuoteKey()
		if _, done := quotes[key]; done {
			continue
		}
		quotes[key] = r.PriceFor(ctx, w.Ticker, w.ISIN, 0)
	}
	return quotes
}

// Bars returns historical bars for the chart view.
func (r *Resolver) Bars(ctx context.Context, symbol, period string) ([]model.Bar, error) {
	if r.History == nil {
		return nil, fmt.Errorf("no history source configured")
	}
	return r.History.Bars(ctx, symbol, period)
}

func (r *Resolver) trySources(ctx context.Context, symbol string) (model.Quote, bool) {
	for _, src := range r.Sources {
		if q, ok := r.try(ctx, src, symbol); ok {
			return q, true
		}
	}
	return model.Quote{}, false
}

func (r *Resolver) try(ctx context.Context, src Source, symbol string) (model.Quote, bool) {
	stepCtx, cancel := r.stepContext(ctx)
	defer cancel()

	q, err := src.Quote(stepCtx, symbol)
	if err != nil {
		r.log.Debug().Err(err).Str("source", src.Name()).Str("symbol", symbol).Msg("lookup failed")
		return q, false
	}
	if !q.OK {
		r.log.Debug().Str("source", src.Name()).Str("symbol", symbol).Msg("no price")
		return q, false
	}
	if q.Price <= 0 {
		// a source vouching for zero is a confirmed zero
		r.log.Info().Str("source", src.Name()).Str("symbol", symbol).Msg("confirmed zero price")
	}
	return q, true
}

// isinCandidates lists the symbols to try for an ISIN: the bare ISIN, the
// ISIN with each venue suffix, then whatever the lookups map it to.
func (r *Resolver) isinCandidates(ctx context.Context, isin string) []string {
	candidates := []string{isin}
	for _, s := range r.Suffixes {
		candidates = append(candidates, isin+s)
	}
	for _, l := range r.Lookups {
		stepCtx, cancel := r.stepContext(ctx)
		symbols, err := l.LookupISIN(stepCtx, isin)
		cancel()
		if err != nil {
			r.log.Debug().Err(err).Str("lookup", l.Name()).Str("isin", isin).Msg("ISIN lookup failed")
			continue
		}
		candidates = append(candidates, symbols...)
	}
	return dedupe(candidates)
}

// withPrevClose fills in the previous close from the history source when
// the winning source did not provide one.
func (r *Resolver) withPrevClose(ctx context.Context, q model.Quote) model.Quote {
	if q.PrevClose > 0 || r.History == nil || q.Symbol == "" {
		return q
	}
	stepCtx, cancel := r.stepContext(ctx)
	defer cancel()

	bars, err := r.History.Bars(stepCtx, q.Symbol, "5d")
	if err != nil || len(bars) < 2 {
		return q
	}
	q.PrevClose = bars[len(bars)-2].Close
	return q
}

func (r *Resolver) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.StepTimeout)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
