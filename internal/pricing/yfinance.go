package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/lookup"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"PortfolioSentinel/internal/model"
)

// YFinanceSource is the fast quote accessor backed by go-yfinance.
type YFinanceSource struct {
	log zerolog.Logger
}

// NewYFinanceSource creates a go-yfinance backed source.
func NewYFinanceSource(log zerolog.Logger) *YFinanceSource {
	return &YFinanceSource{log: log.With().Str("source", "yfinance").Logger()}
}

func (s *YFinanceSource) Name() string { return "yfinance" }

// Quote returns the regular market price, falling back to the pre/post
// market price outside trading hours.
func (s *YFinanceSource) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	price, err := callWithContext(ctx, func() (float64, error) {
		t, err := ticker.New(symbol)
		if err != nil {
			return 0, fmt.Errorf("create ticker: %w", err)
		}
		defer t.Close()

		q, err := t.Quote()
		if err != nil {
			return 0, fmt.Errorf("quote %s: %w", symbol, err)
		}
		if q == nil {
			return 0, ErrNoPrice
		}
		switch {
		case q.RegularMarketPrice > 0:
			return q.RegularMarketPrice, nil
		case q.PostMarketPrice > 0:
			return q.PostMarketPrice, nil
		case q.PreMarketPrice > 0:
			return q.PreMarketPrice, nil
		}
		return 0, ErrNoPrice
	})
	if err != nil {
		return model.Unavailable(), err
	}
	return model.Quote{Symbol: symbol, Price: price, OK: true, Source: s.Name(), At: time.Now()}, nil
}

// LookupISIN searches Yahoo for equities listed under the ISIN.
func (s *YFinanceSource) LookupISIN(ctx context.Context, isin string) ([]string, error) {
	if isin == "" {
		return nil, fmt.Errorf("ISIN cannot be empty")
	}
	return callWithContext(ctx, func() ([]string, error) {
		l, err := lookup.New(isin)
		if err != nil {
			return nil, fmt.Errorf("create lookup: %w", err)
		}
		defer l.Close()

		results, err := l.Stock(1)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", isin, err)
		}
		symbols := make([]string, 0, len(results))
		for _, r := range results {
			if r.Symbol != "" {
				symbols = append(symbols, r.Symbol)
			}
		}
		s.log.Debug().Str("isin", isin).Strs("symbols", symbols).Msg("ISIN lookup")
		return symbols, nil
	})
}
