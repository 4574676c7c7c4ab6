package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/airsentry/airsentry/internal/api/middleware"
)

func TestContentTypeJSONDefaultsHeader(t *testing.T) {
	handler := middleware.ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stations", http.NoBody))

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestContentTypeJSONDoesNotOverrideHandler(t *testing.T) {
	handler := middleware.ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/nope", http.NoBody))

	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRequireJSON(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{"post with json", http.MethodPost, "application/json", http.StatusOK},
		{"post with charset", http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{"post without content type", http.MethodPost, "", http.StatusOK},
		{"post with xml", http.MethodPost, "application/xml", http.StatusUnsupportedMediaType},
		{"put with text", http.MethodPut, "text/plain", http.StatusUnsupportedMediaType},
		{"get ignores content type", http.MethodGet, "text/plain", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.RequireJSON(okHandler())

			req := httptest.NewRequest(tt.method, "/v1/alerts/check", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusUnsupportedMediaType {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			}
		})
	}
}
