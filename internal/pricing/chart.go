package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"PortfolioSentinel/internal/httpclient"
	"PortfolioSentinel/internal/model"
)

const defaultChartURL = "https://query1.finance.yahoo.com"

// ChartSource reads the Yahoo Finance chart API. It serves both the latest
// quote (last bar plus previous close) and historical bars.
type ChartSource struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps an index alias to its Yahoo ticker
}

// NewChartSource creates a chart source with optional proxy support.
func NewChartSource(proxyURL string, timeout time.Duration) *ChartSource {
	return &ChartSource{
		BaseURL: defaultChartURL,
		Client:  httpclient.New(proxyURL, timeout),
		SymbolMap: map[string]string{
			"CAC40":  "^FCHI",
			"SBF120": "^SBF120",
			"SPX500": "^GSPC",
		},
	}
}

func (f *ChartSource) Name() string { return "yahoo-chart" }

func (f *ChartSource) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// chartResponse is the response structure from the Yahoo chart API.
// Null entries (holidays, halted sessions) decode as nil pointers.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartData struct {
	bars          []model.Bar
	marketPrice   float64
	previousClose float64
}

func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

func (f *ChartSource) fetchChart(ctx context.Context, symbol, interval, rng string) (*chartData, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, ErrNoPrice)
	}

	result := chart.Chart.Result[0]
	data := &chartData{
		marketPrice:   result.Meta.RegularMarketPrice,
		previousClose: result.Meta.ChartPreviousClose,
	}
	if data.previousClose == 0 {
		data.previousClose = result.Meta.PreviousClose
	}
	if len(result.Indicators.Quote) == 0 {
		return data, nil
	}

	quote := result.Indicators.Quote[0]
	data.bars = make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := at(quote.Close, i)
		if c == 0 {
			continue
		}
		data.bars = append(data.bars, model.Bar{
			Time:   time.Unix(ts, 0),
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	sort.Slice(data.bars, func(i, j int) bool { return data.bars[i].Time.Before(data.bars[j].Time) })
	return data, nil
}

// Quote returns the latest close, with the previous session's close when
// the chart carries one.
func (f *ChartSource) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	data, err := f.fetchChart(ctx, symbol, "1d", "5d")
	if err != nil {
		return model.Unavailable(), err
	}

	q := model.Quote{Symbol: symbol, Source: f.Name(), At: time.Now()}
	n := len(data.bars)
	switch {
	case n > 0:
		q.Price = data.bars[n-1].Close
		if n > 1 {
			q.PrevClose = data.bars[n-2].Close
		}
	case data.marketPrice > 0:
		q.Price = data.marketPrice
		q.PrevClose = data.previousClose
	}
	if q.Price <= 0 {
		return model.Unavailable(), fmt.Errorf("yahoo %s: %w", symbol, ErrNoPrice)
	}
	q.OK = true
	return q, nil
}

// Bars returns the bars of the given period. The intraday period uses
// hourly bars, the others daily ones.
func (f *ChartSource) Bars(ctx context.Context, symbol, period string) ([]model.Bar, error) {
	if !ValidPeriod(period) {
		return nil, fmt.Errorf("unsupported period %q", period)
	}
	interval := "1d"
	switch period {
	case "1d":
		interval = "60m"
	case "5y", "max":
		interval = "1wk"
	}
	data, err := f.fetchChart(ctx, symbol, interval, period)
	if err != nil {
		return nil, err
	}
	return data.bars, nil
}
