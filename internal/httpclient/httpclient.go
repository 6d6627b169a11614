// Package httpclient builds the outbound HTTP clients used by the price
// sources, the news feed, the push transports and the GitHub backend.
package httpclient

import (
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout applies when New is given a non-positive timeout.
const DefaultTimeout = 10 * time.Second

// New returns a client with the given timeout. When proxyURL is set, every
// request goes through it; an unparsable proxy URL is ignored.
func New(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil && u.Host != "" {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}
