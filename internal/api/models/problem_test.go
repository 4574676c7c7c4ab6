package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsentry/airsentry/internal/api/models"
)

func TestProblemWrite(t *testing.T) {
	p := models.NewBadRequest("req_abc", "lat out of range", []models.FieldError{
		{Field: "lat", Message: "out of range"},
	})
	p.Instance = "/v1/aqi/aggregate"

	rec := httptest.NewRecorder()
	p.Write(rec)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req_abc", rec.Header().Get("X-Request-Id"))

	var decoded models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, models.ProblemTypeValidation, decoded.Type)
	assert.Equal(t, "lat out of range", decoded.Detail)
	assert.Equal(t, "/v1/aqi/aggregate", decoded.Instance)
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, "lat", decoded.Errors[0].Field)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name       string
		problem    *models.Problem
		wantType   string
		wantStatus int
	}{
		{"not found", models.NewNotFound("t", "d"), models.ProblemTypeNotFound, http.StatusNotFound},
		{"too many requests", models.NewTooManyRequests("t", "d"), models.ProblemTypeTooManyRequests, http.StatusTooManyRequests},
		{"internal", models.NewInternalError("t", "d"), models.ProblemTypeInternal, http.StatusInternalServerError},
		{"no data", models.NewNoData("t", "d"), models.ProblemTypeNoData, http.StatusUnprocessableEntity},
		{"unavailable", models.NewServiceUnavailable("t", "d"), models.ProblemTypeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.problem.Type)
			assert.Equal(t, tt.wantStatus, tt.problem.Status)
			assert.Equal(t, "t", tt.problem.TraceID)
			assert.Equal(t, "d", tt.problem.Detail)
			assert.NotEmpty(t, tt.problem.Title)
		})
	}
}

func TestProblemOmitsEmptyFields(t *testing.T) {
	p := models.NewNotFound("req_abc", "")
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "detail")
	assert.NotContains(t, string(raw), "errors")
	assert.NotContains(t, string(raw), "instance")
}
