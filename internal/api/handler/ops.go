// Package handler provides HTTP handlers for the GeoNotify API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/geonotify/geonotify/internal/api/models"
	"github.com/geonotify/geonotify/internal/api/response"
	"github.com/geonotify/geonotify/internal/provider/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// Check is a named dependency probe such as a database ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// DegradationReporter lists the kill switches currently turned on.
type DegradationReporter interface {
	Active(ctx context.Context) []string
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	checks    []Check
	upstreams *resilience.Registry
	flags     DegradationReporter
}

// NewOpsHandler creates a new OpsHandler. upstreams and flags may be nil.
func NewOpsHandler(version, buildTime string, checks []Check, upstreams *resilience.Registry, flags DegradationReporter) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		checks:    checks,
		upstreams: upstreams,
		flags:     flags,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - 503 when any dependency fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	for _, s := range subsystems {
		if s.Status == models.HealthStatusFail {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"failing": s.Name}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and upstream status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.runChecks(r.Context()),
		Upstreams:  []models.UpstreamStatus{},
	}

	for _, s := range status.Subsystems {
		if s.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusFail
		}
	}

	if h.upstreams != nil {
		for _, u := range h.upstreams.All() {
			us := models.UpstreamStatus{
				Name:         u.Name,
				Status:       models.HealthStatusOK,
				CircuitState: u.CircuitState.String(),
			}
			switch {
			case u.Degraded():
				us.Status = models.HealthStatusDegraded
			case !u.Healthy():
				us.Status = models.HealthStatusFail
			}
			if u.LastSuccessAt != nil {
				ts := models.Timestamp(*u.LastSuccessAt)
				us.LastSuccessAt = &ts
			}
			if u.LastFailureAt != nil {
				ts := models.Timestamp(*u.LastFailureAt)
				us.LastFailureAt = &ts
			}
			if u.LastError != "" {
				msg := u.LastError
				us.Message = &msg
			}
			// Push delivery is best effort; a tripped breaker degrades, never fails, the service.
			if us.Status != models.HealthStatusOK && status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Upstreams = append(status.Upstreams, us)
		}
	}

	if h.flags != nil {
		status.ActiveDegradationFlags = h.flags.Active(r.Context())
		if len(status.ActiveDegradationFlags) > 0 && status.Status == models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	out := make([]models.SubsystemStatus, 0, len(h.checks))
	for _, c := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := c.Fn(checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}
