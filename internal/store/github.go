package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PortfolioSentinel/internal/httpclient"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubBackend stores objects as files of a GitHub repository through the
// contents API. The revision is the blob sha.
type GitHubBackend struct {
	BaseURL string
	Repo    string // owner/name
	Branch  string
	Token   string
	Dir     string // path prefix inside the repository
	Client  *http.Client
}

// NewGitHubBackend creates a contents API backend.
func NewGitHubBackend(repo, token, branch, dir string) *GitHubBackend {
	return &GitHubBackend{
		BaseURL: defaultGitHubAPI,
		Repo:    repo,
		Branch:  branch,
		Token:   token,
		Dir:     strings.Trim(dir, "/"),
		Client:  httpclient.New("", 15*time.Second),
	}
}

type contentsResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type contentsPut struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type contentsPutResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

func (b *GitHubBackend) endpoint(name string) string {
	p := name
	if b.Dir != "" {
		p = b.Dir + "/" + name
	}
	return fmt.Sprintf("%s/repos/%s/contents/%s", b.BaseURL, b.Repo, p)
}

func (b *GitHubBackend) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if b.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (b *GitHubBackend) Read(ctx context.Context, name string) ([]byte, string, error) {
	u := b.endpoint(name)
	if b.Branch != "" {
		u += "?ref=" + url.QueryEscape(b.Branch)
	}
	req, err := b.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("github read %s: %w", name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, "", ErrNotFound
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("github read %s: status %d, body: %s", name, resp.StatusCode, string(body))
	}

	var c contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return nil, "", fmt.Errorf("github decode: %w", err)
	}
	// the API wraps base64 at 60 columns
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(c.Content, "\n", ""))
	if err != nil {
		return nil, "", fmt.Errorf("github content %s: %w", name, err)
	}
	return data, c.SHA, nil
}

func (b *GitHubBackend) Write(ctx context.Context, name string, data []byte, rev string) (string, error) {
	payload, err := json.Marshal(contentsPut{
		Message: fmt.Sprintf("Update %s", name),
		Content: base64.StdEncoding.EncodeToString(data),
		SHA:     rev,
		Branch:  b.Branch,
	})
	if err != nil {
		return "", err
	}
	req, err := b.newRequest(ctx, http.MethodPut, b.endpoint(name), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("github write %s: %w", name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return "", fmt.Errorf("github write %s: %w", name, ErrConflict)
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("github write %s: status %d, body: %s", name, resp.StatusCode, string(body))
	}

	var out contentsPutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("github decode: %w", err)
	}
	return out.Content.SHA, nil
}
