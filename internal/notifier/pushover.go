package notifier

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

	"PortfolioSentinel/internal/httpclient"
)

const defaultPushoverURL = "https://api.pushover.net/1/messages.json"

// PushoverNotifier sends push notifications through Pushover.
type PushoverNotifier struct {
	Token    string
	User     string
	Priority int // 1 = high priority, bypasses quiet hours
	BaseURL  string
	Client   *http.Client
}

// NewPushoverNotifier creates a notifier with optional proxy support.
func NewPushoverNotifier(token, user string, priority int, proxyURL string) *PushoverNotifier {
	return &PushoverNotifier{
		Token:    token,
		User:     user,
		Priority: priority,
		BaseURL:  defaultPushoverURL,
		Client:   httpclient.New(proxyURL, 10*time.Second),
	}
}

type pushoverResponse struct {
	Status int      `json:"status"`
	Errors []string `json:"errors"`
}

// Send posts one message.
func (p *PushoverNotifier) Send(ctx context.Context, title, message string) error {
	form := url.Values{}
	form.Set("token", p.Token)
	form.Set("user", p.User)
	form.Set("message", message)
	if title != "" {
		form.Set("title", title)
	}
	if p.Priority != 0 {
		form.Set("priority", strconv.Itoa(p.Priority))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pushover API error: status %d, body: %s", resp.StatusCode, string(body))
	}
	var out pushoverResponse
	if err := json.Unmarshal(body, &out); err == nil && out.Status != 1 {
		return fmt.Errorf("pushover rejected message: %s", strings.Join(out.Errors, "; "))
	}
	return nil
}
