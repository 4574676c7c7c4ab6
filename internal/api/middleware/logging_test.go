package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/airsentry/airsentry/internal/api/middleware"
)

// logLine runs a request through the Logger middleware (wrapped by any
// outer middleware given) and decodes the single JSON line it emits.
func logLine(t *testing.T, handler http.Handler, outer func(http.Handler) http.Handler, req *http.Request) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logged := middleware.Logger(zerolog.New(&buf))(handler)
	if outer != nil {
		logged = outer(logged)
	}
	logged.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerRecordsRequestFields(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("no stations"))
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/aqi/aggregate", http.NoBody)
	req.Header.Set("User-Agent", "monitor/1.0")
	entry := logLine(t, handler, nil, req)

	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/v1/aqi/aggregate", entry["path"])
	assert.Equal(t, float64(http.StatusUnprocessableEntity), entry["status"])
	assert.Equal(t, float64(len("no stations")), entry["bytes"])
	assert.Equal(t, "monitor/1.0", entry["user_agent"])
	assert.NotEmpty(t, entry["duration"])
}

func TestLoggerDefaultsStatusTo200(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok")) // implicit WriteHeader(200)
	})

	entry := logLine(t, handler, nil, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	assert.Equal(t, float64(http.StatusOK), entry["status"])
}

func TestLoggerCarriesRequestID(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	entry := logLine(t, handler, middleware.RequestID, httptest.NewRequest(http.MethodGet, "/v1/alerts", http.NoBody))

	id, ok := entry["request_id"].(string)
	require.True(t, ok)
	assert.Contains(t, id, "req_")
}

func TestLoggerCarriesTraceContext(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = tp.Shutdown(context.Background()) }()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	entry := logLine(t, handler, middleware.Tracing("airsentry-test"), httptest.NewRequest(http.MethodGet, "/v1/aqi/grid", http.NoBody))

	traceID, ok := entry["trace_id"].(string)
	require.True(t, ok)
	assert.Len(t, traceID, 32)

	spanID, ok := entry["span_id"].(string)
	require.True(t, ok)
	assert.Len(t, spanID, 16)
}
