package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/httpclient"
	"PortfolioSentinel/internal/model"
)

const defaultFeedURL = "https://feeds.finance.yahoo.com/rss/2.0/headline"

// Item is one headline.
type Item struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
}

// HoldingNews groups the headlines of one holding.
type HoldingNews struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
	Items  []Item `json:"items"`
}

type rss struct {
	Channel struct {
		Items []struct {
			Title   string `xml:"title"`
			Link    string `xml:"link"`
			PubDate string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Client reads the Yahoo Finance headline feed.
type Client struct {
	BaseURL string
	Region  string
	Lang    string
	Client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a feed client with optional proxy support.
func NewClient(proxyURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		BaseURL: defaultFeedURL,
		Region:  "FR",
		Lang:    "fr-FR",
		Client:  httpclient.New(proxyURL, timeout),
		log:     log.With().Str("component", "news").Logger(),
	}
}

// Headlines returns up to n headlines for the ticker, newest first as the
// feed orders them.
func (c *Client) Headlines(ctx context.Context, ticker string, n int) ([]Item, error) {
	q := url.Values{}
	q.Set("s", ticker)
	if c.Region != "" {
		q.Set("region", c.Region)
	}
	if c.Lang != "" {
		q.Set("lang", c.Lang)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news %s: %w", ticker, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("news %s: status %d, body: %s", ticker, resp.StatusCode, string(body))
	}

	var feed rss
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("news decode: %w", err)
	}

	items := make([]Item, 0, n)
	for _, it := range feed.Channel.Items {
		if len(items) >= n {
			break
		}
		item := Item{Title: it.Title, Link: it.Link}
		if t, err := time.Parse(time.RFC1123Z, it.PubDate); err == nil {
			item.Published = t
		} else if t, err := time.Parse(time.RFC1123, it.PubDate); err == nil {
			item.Published = t
		}
		items = append(items, item)
	}
	return items, nil
}

// Digest collects headlines for each distinct ticker of the holdings. A
// failing ticker is logged and skipped.
func (c *Client) Digest(ctx context.Context, holdings []model.Holding, n int) []HoldingNews {
	seen := make(map[string]bool)
	var out []HoldingNews
	for _, h := range holdings {
		if h.Ticker == "" || seen[h.Ticker] {
			continue
		}
		seen[h.Ticker] = true

		items, err := c.Headlines(ctx, h.Ticker, n)
		if err != nil {
			c.log.Warn().Err(err).Str("ticker", h.Ticker).Msg("headlines unavailable")
			continue
		}
		if len(items) == 0 {
			continue
		}
		out = append(out, HoldingNews{Name: h.Label(), Ticker: h.Ticker, Items: items})
	}
	return out
}
