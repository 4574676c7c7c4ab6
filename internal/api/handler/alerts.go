package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/airsentry/airsentry/internal/alert"
	"github.com/airsentry/airsentry/internal/api/models"
	"github.com/airsentry/airsentry/internal/api/response"
	"github.com/airsentry/airsentry/internal/aqi"
	"github.com/airsentry/airsentry/internal/history"
	"github.com/airsentry/airsentry/internal/notify"
)

// AlertsHandler serves on-demand alert checks and the audit trail.
type AlertsHandler struct {
	source     SnapshotSource
	store      history.Store
	engine     *alert.Engine
	dispatcher *notify.Dispatcher

	defaultTarget aqi.Category
	alertCfg      alert.Config
}

// AlertsHandlerConfig wires the AlertsHandler.
type AlertsHandlerConfig struct {
	Source     SnapshotSource
	Store      history.Store
	Engine     *alert.Engine
	Dispatcher *notify.Dispatcher
	AlertCfg   alert.Config
	Target     aqi.Category
}

// NewAlertsHandler creates an AlertsHandler.
func NewAlertsHandler(cfg AlertsHandlerConfig) *AlertsHandler {
	if cfg.Target == "" {
		cfg.Target = aqi.CategoryUnhealthy
	}
	return &AlertsHandler{
		source:        cfg.Source,
		store:         cfg.Store,
		engine:        cfg.Engine,
		dispatcher:    cfg.Dispatcher,
		defaultTarget: cfg.Target,
		alertCfg:      cfg.AlertCfg,
	}
}

// Check handles POST /v1/alerts/check - evaluate and optionally dispatch
// an alert for one recipient.
func (h *AlertsHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req models.AlertCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}
	if req.Recipient == "" {
		response.BadRequest(w, r, "recipient is required", []models.FieldError{
			{Field: "recipient", Message: "required"},
		})
		return
	}

	target := h.defaultTarget
	if req.TargetSeverity != "" {
		parsed, ok := aqi.ParseCategory(req.TargetSeverity)
		if !ok {
			response.BadRequest(w, r, "unknown target severity", []models.FieldError{
				{Field: "targetSeverity", Message: "unrecognized category name"},
			})
			return
		}
		target = parsed
	}

	signal := h.buildSignal(r)

	decision, err := h.engine.Evaluate(r.Context(), req.Recipient, target, signal)
	if err != nil {
		response.InternalError(w, r, "evaluation failed")
		return
	}

	out := models.AlertCheckResponse{
		Recipient: req.Recipient,
		Decision: models.Decision{
			Send:      decision.Send,
			Reason:    decision.Reason,
			Trend:     string(decision.Trend),
			Threshold: decision.Threshold,
		},
	}
	if signal.Value != nil {
		v := decision.Value
		out.Decision.Value = &v
	}

	if decision.Send && !req.DryRun {
		level := aqi.Classify(decision.Value)
		body := fmt.Sprintf("Air quality alert: %s (AQI %.0f). %s", level.Category, decision.Value, level.Advice)

		res, err := h.dispatcher.Send(r.Context(), req.Recipient, target, body)
		if err != nil {
			if errors.Is(err, notify.ErrInvalidRecipient) {
				response.BadRequest(w, r, "recipient must be an E.164 phone number", []models.FieldError{
					{Field: "recipient", Message: "invalid phone number format"},
				})
				return
			}
			out.Detail = res.Detail
			response.JSON(w, r, http.StatusBadGateway, out)
			return
		}
		out.Sent = true
		out.Provider = res.Provider
		out.Detail = res.Detail
	} else if decision.Send && req.DryRun {
		out.Detail = "dry run, not dispatched"
	}

	response.JSON(w, r, http.StatusOK, out)
}

// Recent handles GET /v1/alerts/recent?limit= - newest-first audit list.
func (h *AlertsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			response.BadRequest(w, r, "limit must be between 1 and 200", []models.FieldError{
				{Field: "limit", Message: "must be an integer between 1 and 200"},
			})
			return
		}
		limit = n
	}

	records, err := h.store.RecentAlerts(r.Context(), limit)
	if err != nil {
		response.ServiceUnavailable(w, r, "history store unavailable")
		return
	}

	out := models.AlertsResponse{Alerts: make([]models.AlertRecord, 0, len(records))}
	for _, rec := range records {
		out.Alerts = append(out.Alerts, models.AlertRecord{
			ID:        rec.ID,
			Recipient: rec.Recipient,
			Severity:  string(rec.Severity),
			SentAt:    models.Timestamp(rec.SentAt),
			Message:   rec.Message,
		})
	}

	response.JSON(w, r, http.StatusOK, out)
}

// buildSignal prefers the sustained average and falls back to a fresh
// snapshot mean. An empty Signal means no data, which the engine reports
// as a non-alerting decision.
func (h *AlertsHandler) buildSignal(r *http.Request) alert.Signal {
	ctx := r.Context()

	var stationValues []float64
	if snapshot, err := h.source.FetchSnapshot(ctx); err == nil {
		stationValues = snapshot.Values()
	}

	if avg, err := h.store.RecentAverage(ctx, h.alertCfg.SustainedWindow); err == nil && avg != nil {
		return alert.Signal{Value: avg, StationValues: stationValues, Source: "sustained_average"}
	}

	if len(stationValues) == 0 {
		return alert.Signal{}
	}
	var sum float64
	for _, v := range stationValues {
		sum += v
	}
	mean := sum / float64(len(stationValues))
	return alert.Signal{Value: &mean, StationValues: stationValues, Source: "snapshot_mean"}
}
