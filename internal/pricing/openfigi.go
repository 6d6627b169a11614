package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/httpclient"
)

const defaultOpenFIGIURL = "https://api.openfigi.com/v3"

// exchangeSuffix maps OpenFIGI exchange codes to Yahoo venue suffixes.
var exchangeSuffix = map[string]string{
	"US": "",
	"UN": "",
	"UW": "",
	"FP": ".PA",
	"NA": ".AS",
	"BB": ".BR",
	"PL": ".LS",
	"GY": ".DE",
	"GR": ".DE",
	"LN": ".L",
	"SM": ".MC",
	"IM": ".MI",
	"SW": ".SW",
	"SE": ".SW",
	"ID": ".IR",
}

type figiRequest struct {
	IDType  string `json:"idType"`
	IDValue string `json:"idValue"`
}

type figiResult struct {
	FIGI         string `json:"figi"`
	Ticker       string `json:"ticker"`
	ExchCode     string `json:"exchCode"`
	Name         string `json:"name"`
	MarketSector string `json:"marketSector"`
}

type figiResponse struct {
	Data    []figiResult `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Warning string       `json:"warning,omitempty"`
}

// OpenFIGIClient maps ISINs to exchange listings through OpenFIGI.
type OpenFIGIClient struct {
	BaseURL string
	APIKey  string // optional, raises the rate limit
	Client  *http.Client
	log     zerolog.Logger
}

// NewOpenFIGIClient creates an OpenFIGI client.
func NewOpenFIGIClient(apiKey, proxyURL string, timeout time.Duration, log zerolog.Logger) *OpenFIGIClient {
	return &OpenFIGIClient{
		BaseURL: defaultOpenFIGIURL,
		APIKey:  apiKey,
		Client:  httpclient.New(proxyURL, timeout),
		log:     log.With().Str("source", "openfigi").Logger(),
	}
}

func (c *OpenFIGIClient) Name() string { return "openfigi" }

// LookupISIN returns Yahoo symbols for the listings OpenFIGI knows, in the
// order returned, skipping exchanges without a known suffix.
func (c *OpenFIGIClient) LookupISIN(ctx context.Context, isin string) ([]string, error) {
	body, err := json.Marshal([]figiRequest{{IDType: "ID_ISIN", IDValue: isin}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/mapping", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-OPENFIGI-APIKEY", c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openfigi request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openfigi: status %d, body: %s", resp.StatusCode, string(b))
	}

	var responses []figiResponse
	if err := json.NewDecoder(resp.Body).Decode(&responses); err != nil {
		return nil, fmt.Errorf("openfigi decode: %w", err)
	}
	if len(responses) == 0 || responses[0].Error != "" {
		return nil, fmt.Errorf("openfigi %s: %w", isin, ErrNoPrice)
	}

	seen := make(map[string]bool)
	var symbols []string
	for _, r := range responses[0].Data {
		suffix, ok := exchangeSuffix[r.ExchCode]
		if !ok || r.Ticker == "" {
			continue
		}
		sym := r.Ticker + suffix
		if !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}
	c.log.Debug().Str("isin", isin).Strs("symbols", symbols).Msg("ISIN mapped")
	return symbols, nil
}
