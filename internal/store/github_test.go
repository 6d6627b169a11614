package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGitHubServer(t *testing.T, putStatus int) (*GitHubBackend, *contentsPut) {
	t.Helper()
	var lastPut contentsPut
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/me/data/contents/portfolio/watchlist.csv":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodGet:
			assert.Equal(t, "/repos/me/data/contents/portfolio/h.csv", r.URL.Path)
			assert.Equal(t, "main", r.URL.Query().Get("ref"))
			enc := base64.StdEncoding.EncodeToString([]byte("Ticker\nMC.PA\n"))
			_ = json.NewEncoder(w).Encode(contentsResponse{SHA: "abc", Content: enc[:8] + "\n" + enc[8:], Encoding: "base64"})
		case r.Method == http.MethodPut:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&lastPut))
			w.WriteHeader(putStatus)
			_, _ = w.Write([]byte(`{"content":{"sha":"def"}}`))
		}
	}))
	t.Cleanup(srv.Close)

	b := NewGitHubBackend("me/data", "tok", "main", "/portfolio/")
	b.BaseURL = srv.URL
	return b, &lastPut
}

func TestGitHubBackend_Read(t *testing.T) {
	b, _ := newGitHubServer(t, http.StatusOK)

	data, rev, err := b.Read(context.Background(), "h.csv")
	require.NoError(t, err)
	assert.Equal(t, "Ticker\nMC.PA\n", string(data))
	assert.Equal(t, "abc", rev)

	_, _, err = b.Read(context.Background(), "watchlist.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGitHubBackend_Write(t *testing.T) {
	b, put := newGitHubServer(t, http.StatusOK)

	rev, err := b.Write(context.Background(), "h.csv", []byte("new"), "abc")
	require.NoError(t, err)
	assert.Equal(t, "def", rev)
	assert.Equal(t, "abc", put.SHA)
	assert.Equal(t, "main", put.Branch)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("new")), put.Content)
	assert.NotEmpty(t, put.Message)
}

func TestGitHubBackend_Conflict(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusUnprocessableEntity} {
		b, _ := newGitHubServer(t, status)
		_, err := b.Write(context.Background(), "h.csv", []byte("new"), "stale")
		assert.ErrorIs(t, err, ErrConflict)
	}

	b, _ := newGitHubServer(t, http.StatusInternalServerError)
	_, err := b.Write(context.Background(), "h.csv", []byte("new"), "abc")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
}
