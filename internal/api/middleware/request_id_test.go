package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/airsentry/airsentry/internal/api/middleware"
)

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/alerts", http.NoBody))

	assert.Contains(t, seen, "req_")
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDPreservesInbound(t *testing.T) {
	var seen string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/alerts", http.NoBody)
	req.Header.Set("X-Request-Id", "req_from_gateway")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req_from_gateway", seen)
	assert.Equal(t, "req_from_gateway", rec.Header().Get("X-Request-Id"))
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/alerts", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestRequestIDsAreUnique(t *testing.T) {
	handler := middleware.RequestID(okHandler())

	seen := make(map[string]bool, 64)
	for i := 0; i < 64; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/alerts", http.NoBody))

		id := rec.Header().Get("X-Request-Id")
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
