package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/api/models"
	"github.com/geonotify/geonotify/internal/api/response"
	"github.com/geonotify/geonotify/internal/featureflags"
)

// FeatureFlagsHandler handles the runtime switch endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	logger  zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service, logger: logger}
}

// ListFeatureFlags handles GET /v1/admin/flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	flags := h.service.GetAllFlags(r.Context())

	list := models.FeatureFlagList{Items: make([]models.FeatureFlag, 0, len(flags))}
	for _, f := range flags {
		item := models.FeatureFlag{Key: f.Key, Value: f.Value}
		if !f.UpdatedAt.IsZero() {
			ts := models.Timestamp(f.UpdatedAt)
			item.UpdatedAt = &ts
		}
		list.Items = append(list.Items, item)
	}
	response.JSON(w, r, http.StatusOK, list)
}

// UpsertFeatureFlags handles PUT /v1/admin/flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var input models.FeatureFlagUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if len(input.Updates) == 0 {
		response.BadRequest(w, r, "no updates", []models.FieldError{{Field: "updates", Message: "must not be empty"}})
		return
	}

	updates := make([]*featureflags.Flag, 0, len(input.Updates))
	for _, u := range input.Updates {
		if _, ok := u.Value.(bool); !ok {
			response.BadRequest(w, r, "flag values must be booleans", []models.FieldError{{Field: "updates." + u.Key, Message: "must be a boolean"}})
			return
		}
		updates = append(updates, &featureflags.Flag{Key: u.Key, Value: u.Value})
	}

	err := h.service.SetFlags(r.Context(), updates, input.Reason)
	if errors.Is(err, featureflags.ErrUnknownFlag) {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to update feature flags")
		response.InternalError(w, r, "failed to update feature flags")
		return
	}

	h.logger.Info().
		Str("subject_id", GetSubjectID(r.Context())).
		Int("updates", len(updates)).
		Msg("feature flags changed")

	h.ListFeatureFlags(w, r)
}

// InvalidateCache handles POST /v1/admin/flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
