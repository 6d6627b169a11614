package store

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves a single object under path-style addressing.
func fakeS3(t *testing.T) *S3Backend {
	t.Helper()
	var (
		body []byte
		etag string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bucket/prefix/h.csv" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		switch r.Method {
		case http.MethodGet:
			if etag == "" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
				return
			}
			w.Header().Set("ETag", etag)
			_, _ = w.Write(body)
		case http.MethodPut:
			ok := (etag == "" && r.Header.Get("If-None-Match") == "*") ||
				(etag != "" && r.Header.Get("If-Match") == etag)
			if !ok {
				w.WriteHeader(http.StatusPreconditionFailed)
				_, _ = w.Write([]byte(`<Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message></Error>`))
				return
			}
			data, _ := io.ReadAll(r.Body)
			body = data
			if etag == "" {
				etag = `"1"`
			} else {
				etag = `"2"`
			}
			w.Header().Set("ETag", etag)
		}
	}))
	t.Cleanup(srv.Close)

	b, err := NewS3Backend(context.Background(), S3Config{
		Bucket:          "bucket",
		Prefix:          "prefix",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		PathStyle:       true,
	})
	require.NoError(t, err)
	return b
}

func TestS3Backend_ConditionalWrites(t *testing.T) {
	ctx := context.Background()
	b := fakeS3(t)

	_, _, err := b.Read(ctx, "h.csv")
	assert.ErrorIs(t, err, ErrNotFound)

	rev, err := b.Write(ctx, "h.csv", []byte("Ticker\n"), "")
	require.NoError(t, err)
	assert.Equal(t, `"1"`, rev)

	_, err = b.Write(ctx, "h.csv", []byte("again"), "")
	assert.ErrorIs(t, err, ErrConflict)

	_, readRev, err := b.Read(ctx, "h.csv")
	require.NoError(t, err)
	assert.Equal(t, rev, readRev)

	rev2, err := b.Write(ctx, "h.csv", []byte("Ticker\nMC.PA\n"), rev)
	require.NoError(t, err)
	assert.Equal(t, `"2"`, rev2)

	_, err = b.Write(ctx, "h.csv", []byte("stale"), rev)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestNewS3Backend_RequiresBucket(t *testing.T) {
	_, err := NewS3Backend(context.Background(), S3Config{})
	assert.Error(t, err)
}
