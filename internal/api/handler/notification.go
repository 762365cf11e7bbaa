package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/api/models"
	"github.com/geonotify/geonotify/internal/api/response"
	"github.com/geonotify/geonotify/internal/notification"
	"github.com/geonotify/geonotify/internal/tracking"
)

// maxNotificationLimit caps the limit query parameter.
const maxNotificationLimit = 500

// ActiveAlertLister lists subjects currently inside danger or critical zones.
type ActiveAlertLister interface {
	ActiveAlerts(ctx context.Context) ([]tracking.ActiveAlert, error)
}

// NotificationHandler serves the response-team views: the notification log
// and the active alerts dashboard.
type NotificationHandler struct {
	log    notification.Log
	alerts ActiveAlertLister
	logger zerolog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(log notification.Log, alerts ActiveAlertLister, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{log: log, alerts: alerts, logger: logger}
}

// ListNotifications handles GET /v1/notifications?limit=N - newest first.
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := notification.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxNotificationLimit {
			response.BadRequest(w, r, "limit must be between 1 and 500", []models.FieldError{
				{Field: "limit", Message: "must be between 1 and 500"},
			})
			return
		}
		limit = n
	}

	events, err := h.log.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list notifications")
		response.InternalError(w, r, "failed to list notifications")
		return
	}

	list := models.NotificationList{
		Items: make([]models.Notification, 0, len(events)),
		Meta:  models.PagedResponseMeta{Limit: limit},
	}
	for _, e := range events {
		list.Items = append(list.Items, toAPINotification(e))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// ListActiveAlerts handles GET /v1/alerts/active.
func (h *NotificationHandler) ListActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.ActiveAlerts(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list active alerts")
		response.InternalError(w, r, "failed to list active alerts")
		return
	}

	list := models.ActiveAlertList{Items: make([]models.ActiveAlert, 0, len(alerts))}
	for _, a := range alerts {
		list.Items = append(list.Items, toAPIActiveAlert(a))
	}
	response.JSON(w, r, http.StatusOK, list)
}
