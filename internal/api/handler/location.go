package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/api/models"
	"github.com/geonotify/geonotify/internal/api/response"
	"github.com/geonotify/geonotify/internal/geo"
	"github.com/geonotify/geonotify/internal/subject"
	"github.com/geonotify/geonotify/internal/tracking"
)

// LocationEvaluator runs one location evaluation.
type LocationEvaluator interface {
	EvaluateWithRetry(ctx context.Context, s tracking.Sample) (*tracking.Result, error)
}

// LocationHandler handles location reports.
type LocationHandler struct {
	engine LocationEvaluator
	logger zerolog.Logger
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(engine LocationEvaluator, logger zerolog.Logger) *LocationHandler {
	return &LocationHandler{engine: engine, logger: logger}
}

// CheckLocation handles POST /v1/me/location - evaluate the caller's position.
func (h *LocationHandler) CheckLocation(w http.ResponseWriter, r *http.Request) {
	var input models.LocationCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	var fieldErrors []models.FieldError
	if input.Lat == nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "lat", Message: "lat is required"})
	}
	if input.Lng == nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "lng", Message: "lng is required"})
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "valid lat and lng required", fieldErrors)
		return
	}

	sample := tracking.Sample{
		SubjectID: GetSubjectID(r.Context()),
		Lat:       *input.Lat,
		Lng:       *input.Lng,
	}
	if input.Timestamp != nil {
		sample.Timestamp = input.Timestamp.Time()
	}

	result, err := h.engine.EvaluateWithRetry(r.Context(), sample)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toLocationResponse(result))
}

func (h *LocationHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *tracking.InputError
	switch {
	case errors.As(err, &inputErr):
		response.BadRequest(w, r, "invalid location", []models.FieldError{
			{Field: inputErr.Field, Message: inputErr.Reason},
		})
	case errors.Is(err, subject.ErrSubjectNotFound):
		response.NotFound(w, r, "subject not registered")
	case errors.Is(err, tracking.ErrStoreConflict):
		response.Conflict(w, r, "location was updated concurrently, retry")
	case errors.Is(err, tracking.ErrStaleSample):
		response.Conflict(w, r, "sample is older than the last reported location")
	case errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(w, r, "evaluation timed out")
	default:
		h.logger.Error().Err(err).Str("subject_id", GetSubjectID(r.Context())).Msg("location evaluation failed")
		response.InternalError(w, r, "failed to evaluate location")
	}
}

func toLocationResponse(res *tracking.Result) models.LocationCheckResponse {
	out := models.LocationCheckResponse{
		Inside:                toAPIHits(res.Inside),
		Near:                  toAPIHits(res.Near),
		Entered:               nonNil(res.Entered),
		Exited:                nonNil(res.Exited),
		Notifications:         make([]models.Notification, 0, len(res.Events)),
		SuppressedEscalations: res.SuppressedEscalations,
		ZoneWarnings:          make([]models.ZoneWarning, 0, len(res.ZoneErrors)),
		Degraded:              len(res.ZoneErrors) > 0 || len(res.DeliveryFailures) > 0 || res.LogFailures > 0,
	}
	for _, e := range res.Events {
		out.Notifications = append(out.Notifications, toAPINotification(e))
	}
	for _, zerr := range res.ZoneErrors {
		warning := models.ZoneWarning{Message: zerr.Error()}
		var cfgErr *geo.ConfigurationError
		if errors.As(zerr, &cfgErr) {
			warning.ZoneID = cfgErr.ZoneID
			warning.Message = cfgErr.Err.Error()
		}
		out.ZoneWarnings = append(out.ZoneWarnings, warning)
	}
	return out
}
