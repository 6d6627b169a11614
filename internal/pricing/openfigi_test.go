package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFIGIClient_LookupISIN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mapping", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-OPENFIGI-APIKEY"))

		var reqs []figiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqs))
		require.Len(t, reqs, 1)
		assert.Equal(t, "ID_ISIN", reqs[0].IDType)
		assert.Equal(t, "FR0000121014", reqs[0].IDValue)

		_, _ = w.Write([]byte(`[{"data":[
			{"ticker":"MC","exchCode":"FP"},
			{"ticker":"MC","exchCode":"FP"},
			{"ticker":"MOH","exchCode":"GY"},
			{"ticker":"LVMUY","exchCode":"ZZ"}
		]}]`))
	}))
	defer srv.Close()

	c := NewOpenFIGIClient("key", "", 5*time.Second, zerolog.Nop())
	c.BaseURL = srv.URL

	symbols, err := c.LookupISIN(context.Background(), "FR0000121014")
	require.NoError(t, err)
	assert.Equal(t, []string{"MC.PA", "MOH.DE"}, symbols)
}

func TestOpenFIGIClient_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"error":"No identifier found."}]`))
	}))
	defer srv.Close()

	c := NewOpenFIGIClient("", "", 5*time.Second, zerolog.Nop())
	c.BaseURL = srv.URL
	_, err := c.LookupISIN(context.Background(), "XX0000000000")
	assert.ErrorIs(t, err, ErrNoPrice)
}
