package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightfield-ai/scout/internal/model"
)

// denyLimiter rejects every request.
type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, error) { return false, nil }
func (denyLimiter) Close() error                                { return nil }

// brokenLimiter simulates a limiter backend failure.
type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("backend down")
}
func (brokenLimiter) Close() error { return nil }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func staticKey(r *http.Request) string { return "client" }

func TestMiddlewareAllows(t *testing.T) {
	h := Middleware(NoopLimiter{}, staticKey, nil)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/analyze", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareDenies(t *testing.T) {
	reqID := func(r *http.Request) string { return "req-123" }
	h := Middleware(denyLimiter{}, staticKey, reqID)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/analyze", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var apiErr model.APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	assert.Equal(t, model.ErrCodeRateLimited, apiErr.Error.Code)
	assert.Equal(t, "req-123", apiErr.Meta.RequestID)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	h := Middleware(brokenLimiter{}, staticKey, nil)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/analyze", nil))

	assert.Equal(t, http.StatusOK, rec.Code, "limiter errors must not block traffic")
}

func TestMiddlewareSkipsNilLimiterAndEmptyKey(t *testing.T) {
	h := Middleware(nil, staticKey, nil)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	emptyKey := func(r *http.Request) string { return "" }
	h = Middleware(denyLimiter{}, emptyKey, nil)(okHandler())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "empty key skips rate limiting")
}

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"203.0.113.9:51234", "203.0.113.9"},
		{"[2001:db8::1]:51234", "[2001:db8::1]"},
		{"203.0.113.9", "203.0.113.9"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remoteAddr
		assert.Equal(t, tt.want, IPKeyFunc(r), tt.remoteAddr)
	}
}

func TestIPKeyFuncIgnoresForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:51234"
	r.Header.Set("X-Forwarded-For", "198.51.100.7")

	assert.Equal(t, "203.0.113.9", IPKeyFunc(r), "X-Forwarded-For is untrusted")
}
