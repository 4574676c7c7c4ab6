package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsentry/airsentry/internal/api/middleware"
	"github.com/airsentry/airsentry/internal/api/models"
	"github.com/airsentry/airsentry/internal/api/response"
)

// identifiedRequest runs a request through the RequestID middleware so the
// context carries an ID, the way every real request arrives.
func identifiedRequest(t *testing.T, path string) *http.Request {
	t.Helper()

	var out *http.Request
	h := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		out = r
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	require.NotNil(t, out)
	return out
}

func TestJSONCorrelatesRequestID(t *testing.T) {
	req := identifiedRequest(t, "/v1/stations")
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"city": "Delhi"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Delhi", body["city"])
}

func TestJSONNilBody(t *testing.T) {
	req := identifiedRequest(t, "/v1/stations")
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestErrorHelpersWriteProblems(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter, r *http.Request)
		wantStatus int
		wantType   string
	}{
		{
			name: "bad request",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.BadRequest(w, r, "lat out of range", []models.FieldError{{Field: "lat", Message: "out of range"}})
			},
			wantStatus: http.StatusBadRequest,
			wantType:   models.ProblemTypeValidation,
		},
		{
			name: "not found",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.NotFound(w, r, "no such endpoint")
			},
			wantStatus: http.StatusNotFound,
			wantType:   models.ProblemTypeNotFound,
		},
		{
			name: "no data",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.NoData(w, r, "no stations within radius")
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   models.ProblemTypeNoData,
		},
		{
			name: "internal error",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.InternalError(w, r, "interpolation failed")
			},
			wantStatus: http.StatusInternalServerError,
			wantType:   models.ProblemTypeInternal,
		},
		{
			name: "service unavailable",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.ServiceUnavailable(w, r, "station feed unavailable")
			},
			wantStatus: http.StatusServiceUnavailable,
			wantType:   models.ProblemTypeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := identifiedRequest(t, "/v1/aqi/aggregate")
			rec := httptest.NewRecorder()

			tt.write(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, "/v1/aqi/aggregate", problem.Instance)
			assert.NotEmpty(t, problem.TraceID)
			assert.NotEmpty(t, problem.Detail)
		})
	}
}

func TestBadRequestCarriesFieldErrors(t *testing.T) {
	req := identifiedRequest(t, "/v1/alerts/check")
	rec := httptest.NewRecorder()

	response.BadRequest(rec, req, "recipient is required", []models.FieldError{
		{Field: "recipient", Message: "required"},
	})

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "recipient", problem.Errors[0].Field)
}
