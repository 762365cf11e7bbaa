package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/api/models"
	"github.com/geonotify/geonotify/internal/api/response"
	"github.com/geonotify/geonotify/internal/subject"
	"github.com/geonotify/geonotify/internal/zone"
)

// MeHandler handles the caller's subject profile and zone subscriptions.
type MeHandler struct {
	subjects *subject.Service
	logger   zerolog.Logger
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(subjects *subject.Service, logger zerolog.Logger) *MeHandler {
	return &MeHandler{subjects: subjects, logger: logger}
}

// GetMe handles GET /v1/me - get the caller's subject record.
func (h *MeHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	subj, err := h.subjects.Get(r.Context(), GetSubjectID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toAPISubject(subj))
}

// Register handles PUT /v1/me - create or update the caller's profile.
// Returns 201 on first registration and 200 afterwards.
func (h *MeHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input models.SubjectRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	id := getIdentity(r.Context())
	subj, created, err := h.subjects.Register(r.Context(), id.SubjectID, id.Role, &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if created {
		response.Created(w, r, "/v1/me", toAPISubject(subj))
		return
	}
	response.JSON(w, r, http.StatusOK, toAPISubject(subj))
}

// Subscribe handles POST /v1/me/subscriptions - subscribe to a zone.
func (h *MeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var input models.SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if input.ZoneID == "" {
		response.BadRequest(w, r, "zoneId is required", []models.FieldError{
			{Field: "zoneId", Message: "zoneId is required"},
		})
		return
	}

	subj, err := h.subjects.Subscribe(r.Context(), GetSubjectID(r.Context()), input.ZoneID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toAPISubject(subj))
}

// Unsubscribe handles DELETE /v1/me/subscriptions/{zoneId}.
func (h *MeHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneId")
	if zoneID == "" {
		response.BadRequest(w, r, "zoneId is required", nil)
		return
	}

	subj, err := h.subjects.Unsubscribe(r.Context(), GetSubjectID(r.Context()), zoneID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toAPISubject(subj))
}

func (h *MeHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *subject.ValidationError
	switch {
	case errors.As(err, &valErr):
		response.BadRequest(w, r, valErr.Message, []models.FieldError{
			{Field: valErr.Field, Message: valErr.Message},
		})
	case errors.Is(err, subject.ErrSubjectNotFound):
		response.NotFound(w, r, "subject not registered")
	case errors.Is(err, zone.ErrZoneNotFound):
		response.NotFound(w, r, "zone not found")
	default:
		h.logger.Error().Err(err).Str("subject_id", GetSubjectID(r.Context())).Msg("subject request failed")
		response.InternalError(w, r, "failed to process request")
	}
}
