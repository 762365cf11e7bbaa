package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/api/models"
	"github.com/geonotify/geonotify/internal/api/response"
	"github.com/geonotify/geonotify/internal/device"
)

// DeviceHandler handles push endpoint registration.
type DeviceHandler struct {
	devices *device.Service
	logger  zerolog.Logger
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(devices *device.Service, logger zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{devices: devices, logger: logger}
}

// ListDevices handles GET /v1/me/devices - list registered push endpoints.
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	list, err := h.devices.List(r.Context(), GetSubjectID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list devices")
		response.InternalError(w, r, "failed to list devices")
		return
	}
	response.JSON(w, r, http.StatusOK, list)
}

// RegisterDevice handles POST /v1/me/devices - register or update an endpoint.
func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var input models.DeviceRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	dev, created, err := h.devices.Register(r.Context(), GetSubjectID(r.Context()), &input)
	switch {
	case errors.Is(err, device.ErrInvalidPlatform):
		response.BadRequest(w, r, err.Error(), []models.FieldError{{Field: "platform", Message: err.Error()}})
		return
	case errors.Is(err, device.ErrInvalidEndpoint):
		response.BadRequest(w, r, err.Error(), []models.FieldError{{Field: "endpoint", Message: err.Error()}})
		return
	case errors.Is(err, device.ErrMissingKeys):
		response.BadRequest(w, r, err.Error(), []models.FieldError{{Field: "keys", Message: err.Error()}})
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("failed to register device")
		response.InternalError(w, r, "failed to register device")
		return
	}

	if created {
		response.Created(w, r, "/v1/me/devices/"+dev.ID, dev)
		return
	}
	response.JSON(w, r, http.StatusOK, dev)
}

// UnregisterDevice handles DELETE /v1/me/devices/{deviceId}.
func (h *DeviceHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	if deviceID == "" {
		response.BadRequest(w, r, "deviceId is required", nil)
		return
	}

	if err := h.devices.Unregister(r.Context(), GetSubjectID(r.Context()), deviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to unregister device")
		response.InternalError(w, r, "failed to unregister device")
		return
	}
	response.NoContent(w, r)
}
