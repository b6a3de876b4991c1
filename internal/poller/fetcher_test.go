package poller

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

func TestHTTPFetcher(t *testing.T) {
	var gotPath, gotQuery, gotToken, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		gotToken, gotAuth = r.Header.Get("X-HB-Token"), r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":1,"kind":"chat","title":"t","body":"b","payload":{"chat_id":3},"is_read":false,"created_at":"2026-10-19T10:00:00"},
			{"id":2,"kind":"system","title":"t","body":"b","payload":{},"is_read":true,"created_at":"2026-10-19T09:00:00"}
		]`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), FetcherConfig{APIBase: srv.URL + "/hb/v1/proxy/", Limit: 500})
	items, err := f.Fetch(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.False(t, items[0].IsRead)
	assert.JSONEq(t, `{"chat_id":3}`, string(items[0].Payload))
	assert.Equal(t, "/hb/v1/proxy/notifications", gotPath)
	assert.Equal(t, "limit=200", gotQuery)
	assert.Equal(t, "tok", gotToken)
	assert.Empty(t, gotAuth)

	bearer := NewHTTPFetcher(srv.Client(), FetcherConfig{APIBase: srv.URL + "/api/v1", Header: "Authorization"})
	_, err = bearer.Fetch(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "limit=50", gotQuery)
}

func TestHTTPFetcherStatusErrors(t *testing.T) {
	status, retryAfter := http.StatusTooManyRequests, "300"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		w.WriteHeader(status)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), FetcherConfig{APIBase: srv.URL})
	_, err := f.Fetch(context.Background(), "tok")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.Equal(t, 300*time.Second, se.RetryAfter)

	status, retryAfter = http.StatusUnauthorized, ""
	_, err = f.Fetch(context.Background(), "tok")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Zero(t, se.RetryAfter)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 120*time.Second, ParseRetryAfter("120", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("-5", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("soon", now))
	assert.Equal(t, 90*time.Second, ParseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now))

	assert.Equal(t, 24*time.Hour, ParseRetryAfter("99999999999", now))
	assert.Equal(t, 24*time.Hour, ParseRetryAfter("86400", now))
	assert.Equal(t, 24*time.Hour, ParseRetryAfter(now.AddDate(5, 0, 0).Format(http.TimeFormat), now))
}
