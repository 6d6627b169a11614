package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeSource_Quote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "FR0010315770", r.URL.Query().Get("isin"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"instrument":{"quote":{"last":"1 234,56"}}}`))
	}))
	defer srv.Close()

	src := NewScrapeSource(srv.URL+"/quote?isin={isin}", "$.instrument.quote.last", "secret", "", 5*time.Second)
	q, err := src.Quote(context.Background(), "FR0010315770")
	require.NoError(t, err)
	assert.True(t, q.OK)
	assert.Equal(t, 1234.56, q.Price)
	assert.Equal(t, "scrape", q.Source)
}

func TestScrapeSource_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"price":0}`))
	}))
	defer srv.Close()

	src := NewScrapeSource(srv.URL+"/{isin}", "", "", "", 5*time.Second)
	_, err := src.Quote(context.Background(), "X")
	assert.True(t, errors.Is(err, ErrNoPrice))

	src.PricePath = "$.missing"
	_, err = src.Quote(context.Background(), "X")
	assert.Error(t, err)

	_, err = NewScrapeSource("", "", "", "", time.Second).Quote(context.Background(), "X")
	assert.Error(t, err)
}

func TestToPrice(t *testing.T) {
	v, err := toPrice(12.5)
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	v, err = toPrice("42,10 €")
	require.NoError(t, err)
	assert.Equal(t, 42.1, v)

	v, err = toPrice([]interface{}{3.0})
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = toPrice(true)
	assert.Error(t, err)
}
