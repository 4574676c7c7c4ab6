// Package handler provides HTTP handlers for the AirSentry API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/airsentry/airsentry/internal/api/models"
	"github.com/airsentry/airsentry/internal/api/response"
	"github.com/airsentry/airsentry/internal/resilience"
)

// Pinger verifies connectivity to the durable store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	pinger    Pinger
	registry  *resilience.Registry
	metrics   func() map[string]any
}

// NewOpsHandler creates a new OpsHandler. The pinger may be nil when the
// service runs on the in-memory store; readiness then only reflects
// process liveness. The metrics callback may be nil.
func NewOpsHandler(version, buildTime string, pinger Pinger, registry *resilience.Registry, metrics func() map[string]any) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		pinger:    pinger,
		registry:  registry,
		metrics:   metrics,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]any{"database": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   now,
	}

	dbStatus := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
	if h.pinger == nil {
		detail := "running on in-memory store"
		dbStatus.Status = models.HealthStatusDegraded
		dbStatus.Detail = &detail
	} else if err := h.pinger.Ping(r.Context()); err != nil {
		detail := err.Error()
		dbStatus.Status = models.HealthStatusFail
		dbStatus.Detail = &detail
		status.Status = models.HealthStatusDegraded
	}
	status.Subsystems = append(status.Subsystems, dbStatus)

	if h.registry != nil {
		for _, health := range h.registry.AllHealth() {
			ps := models.ProviderStatus{
				Provider: health.Name,
				Status:   models.HealthStatusOK,
			}
			if !health.Healthy() {
				ps.Status = models.HealthStatusDegraded
				status.Status = models.HealthStatusDegraded
			}
			if health.LastError != "" {
				msg := health.LastError
				ps.Message = &msg
			}
			if health.LastSuccessAt != nil {
				t := models.Timestamp(*health.LastSuccessAt)
				ps.LastSuccessAt = &t
			}
			if health.LastFailureAt != nil {
				t := models.Timestamp(*health.LastFailureAt)
				ps.LastFailureAt = &t
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	if h.metrics != nil {
		status.Metrics = h.metrics()
	}

	response.JSON(w, r, http.StatusOK, status)
}
