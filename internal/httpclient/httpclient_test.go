package httpclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proxyFor(t *testing.T, c *http.Client) string {
	t.Helper()
	transport, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	req, err := http.NewRequest(http.MethodGet, "https://query1.finance.yahoo.com/v8/finance/chart/MC.PA", nil)
	require.NoError(t, err)
	u, err := transport.Proxy(req)
	require.NoError(t, err)
	if u == nil {
		return ""
	}
	return u.String()
}

func TestNew_Proxy(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "")
	t.Setenv("https_proxy", "")

	c := New("http://proxy.local:3128", 30*time.Second)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, "http://proxy.local:3128", proxyFor(t, c))

	assert.Empty(t, proxyFor(t, New("", 0)))
	assert.Empty(t, proxyFor(t, New("::not a url", 0)))
}

func TestNew_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, New("", 0).Timeout)
	assert.Equal(t, DefaultTimeout, New("", -time.Second).Timeout)
}

func TestNew_ClientsDoNotShareTransport(t *testing.T) {
	a, b := New("http://proxy.local:3128", 0), New("", 0)
	assert.NotSame(t, a.Transport, b.Transport)
	assert.NotSame(t, http.DefaultTransport, a.Transport)
}
