package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"PortfolioSentinel/internal/httpclient"
	"PortfolioSentinel/internal/model"
)

// ScrapeSource reads a price from a JSON quote page keyed by ISIN. The page
// address comes from a template containing {isin}; the price is located
// with a JSONPath expression.
type ScrapeSource struct {
	URLTemplate string
	PricePath   string
	APIKey      string
	Client      *http.Client
}

// NewScrapeSource creates a scrape source with optional proxy support.
func NewScrapeSource(urlTemplate, pricePath, apiKey, proxyURL string, timeout time.Duration) *ScrapeSource {
	if pricePath == "" {
		pricePath = "$.price"
	}
	return &ScrapeSource{
		URLTemplate: urlTemplate,
		PricePath:   pricePath,
		APIKey:      apiKey,
		Client:      httpclient.New(proxyURL, timeout),
	}
}

func (f *ScrapeSource) Name() string { return "scrape" }

func (f *ScrapeSource) Quote(ctx context.Context, isin string) (model.Quote, error) {
	if f.URLTemplate == "" {
		return model.Unavailable(), fmt.Errorf("scrape: no url template configured")
	}
	endpoint := strings.ReplaceAll(f.URLTemplate, "{isin}", url.QueryEscape(isin))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Unavailable(), err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return model.Unavailable(), fmt.Errorf("scrape %s: %w", isin, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return model.Unavailable(), fmt.Errorf("scrape %s: status %d, body: %s", isin, resp.StatusCode, string(body))
	}

	var doc interface{}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return model.Unavailable(), fmt.Errorf("scrape decode: %w", err)
	}
	raw, err := jsonpath.Get(f.PricePath, doc)
	if err != nil {
		return model.Unavailable(), fmt.Errorf("scrape %s: path %s: %w", isin, f.PricePath, err)
	}
	price, err := toPrice(raw)
	if err != nil {
		return model.Unavailable(), fmt.Errorf("scrape %s: %w", isin, err)
	}
	if price <= 0 {
		return model.Unavailable(), fmt.Errorf("scrape %s: %w", isin, ErrNoPrice)
	}
	return model.Quote{Symbol: isin, Price: price, OK: true, Source: f.Name(), At: time.Now()}, nil
}

// toPrice accepts JSON numbers and numeric strings, including the
// "1 234,56" style of French quote pages.
func toPrice(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		s := strings.NewReplacer(" ", "", "\u00a0", "", "€", "", ",", ".").Replace(strings.TrimSpace(n))
		return strconv.ParseFloat(s, 64)
	case []interface{}:
		if len(n) > 0 {
			return toPrice(n[0])
		}
	}
	return 0, fmt.Errorf("unexpected price value %v", v)
}
