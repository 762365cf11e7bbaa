package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/api/models"
	"github.com/geonotify/geonotify/internal/api/response"
	"github.com/geonotify/geonotify/internal/zone"
)

// ZoneHandler handles zone listing and administration.
type ZoneHandler struct {
	zones  *zone.Service
	logger zerolog.Logger
}

// NewZoneHandler creates a new ZoneHandler.
func NewZoneHandler(zones *zone.Service, logger zerolog.Logger) *ZoneHandler {
	return &ZoneHandler{zones: zones, logger: logger}
}

// ListZones handles GET /v1/zones.
func (h *ZoneHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.zones.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	list := models.ZoneList{Items: make([]models.Zone, 0, len(zones))}
	for _, z := range zones {
		list.Items = append(list.Items, toAPIZone(z))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// GetZone handles GET /v1/zones/{zoneId}.
func (h *ZoneHandler) GetZone(w http.ResponseWriter, r *http.Request) {
	z, err := h.zones.Get(r.Context(), chi.URLParam(r, "zoneId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toAPIZone(z))
}

// CreateZone handles POST /v1/zones (admin).
func (h *ZoneHandler) CreateZone(w http.ResponseWriter, r *http.Request) {
	var input models.ZoneCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	z, err := h.zones.Create(r.Context(), GetSubjectID(r.Context()), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, r, "/v1/zones/"+z.ID, toAPIZone(z))
}

// UpdateZone handles PUT /v1/zones/{zoneId} (admin).
func (h *ZoneHandler) UpdateZone(w http.ResponseWriter, r *http.Request) {
	var input models.ZoneUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	z, err := h.zones.Update(r.Context(), chi.URLParam(r, "zoneId"), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toAPIZone(z))
}

// DeleteZone handles DELETE /v1/zones/{zoneId} (admin).
func (h *ZoneHandler) DeleteZone(w http.ResponseWriter, r *http.Request) {
	if err := h.zones.Delete(r.Context(), chi.URLParam(r, "zoneId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

func (h *ZoneHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *zone.ValidationError
	switch {
	case errors.As(err, &valErr):
		fieldErrors := make([]models.FieldError, 0, len(valErr.Errors))
		for _, fe := range valErr.Errors {
			fieldErrors = append(fieldErrors, models.FieldError{Field: fe.Field, Message: fe.Message})
		}
		response.BadRequest(w, r, "invalid zone", fieldErrors)
	case errors.Is(err, zone.ErrZoneNotFound):
		response.NotFound(w, r, "zone not found")
	default:
		h.logger.Error().Err(err).Msg("zone request failed")
		response.InternalError(w, r, "failed to process zone request")
	}
}
