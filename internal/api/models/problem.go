package models

import (
	"encoding/json"
	"net/http"
)

// problemBase is the URI prefix identifying this API's problem types.
const problemBase = "https://api.airsentry.io/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation      = problemBase + "validation-error"
	ProblemTypeNotFound        = problemBase + "not-found"
	ProblemTypeTooManyRequests = problemBase + "too-many-requests"
	ProblemTypeInternal        = problemBase + "internal-error"
	ProblemTypeUnavailable     = problemBase + "service-unavailable"
	ProblemTypeNoData          = problemBase + "no-data"
)

// Problem is an RFC7807 error document. Every API error response carries
// one, with Content-Type application/problem+json. TraceID echoes the
// request id so a failing response can be matched to its log lines.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError pins a validation failure to one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewProblem builds a Problem of an arbitrary type. The standard types
// below have dedicated constructors.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{Type: problemType, Title: title, Status: status, TraceID: traceID}
}

// Write serializes the problem to w with its status code.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func newStandard(problemType, title string, status int, traceID, detail string) *Problem {
	p := NewProblem(problemType, title, status, traceID)
	p.Detail = detail
	return p
}

// NewBadRequest builds a 400 validation problem, optionally carrying
// per-field errors.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := newStandard(ProblemTypeValidation, "Validation error", http.StatusBadRequest, traceID, detail)
	p.Errors = errors
	return p
}

// NewNotFound builds a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return newStandard(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID, detail)
}

// NewTooManyRequests builds a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return newStandard(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID, detail)
}

// NewInternalError builds a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return newStandard(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID, detail)
}

// NewNoData builds a 422 problem for requests that cannot be served
// because the underlying signal is absent: no stations, empty history,
// too few points to interpolate.
func NewNoData(traceID, detail string) *Problem {
	return newStandard(ProblemTypeNoData, "No data available", http.StatusUnprocessableEntity, traceID, detail)
}

// NewServiceUnavailable builds a 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return newStandard(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID, detail)
}
