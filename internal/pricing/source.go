package pricing

import (
	"context"
	"errors"

	"PortfolioSentinel/internal/model"
)

// ErrNoPrice is returned by sources that answered but had no usable price.
var ErrNoPrice = errors.New("no price data")

// Source looks up the latest price of a symbol.
type Source interface {
	Quote(ctx context.Context, symbol string) (model.Quote, error)
	Name() string
}

// BarSource returns historical bars. Periods: 1d, 5d, 1mo, 6mo, 1y, 5y, max.
type BarSource interface {
	Bars(ctx context.Context, symbol, period string) ([]model.Bar, error)
}

// ISINLookup maps an ISIN to candidate market symbols.
type ISINLookup interface {
	LookupISIN(ctx context.Context, isin string) ([]string, error)
	Name() string
}

// Periods lists the history periods accepted by BarSource implementations.
var Periods = []string{"1d", "5d", "1mo", "6mo", "1y", "5y", "max"}

// ValidPeriod reports whether p is one of Periods.
func ValidPeriod(p string) bool {
	for _, v := range Periods {
		if v == p {
			return true
		}
	}
	return false
}

// callWithContext runs fn and gives up when ctx is done first. It is used
// for client libraries that take no context.
func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}
