package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/api/models"
	"github.com/geonotify/geonotify/internal/api/response"
	"github.com/geonotify/geonotify/internal/subject"
)

// SubjectHandler serves the admin subject tracking views.
type SubjectHandler struct {
	subjects *subject.Service
	logger   zerolog.Logger
}

// NewSubjectHandler creates a new SubjectHandler.
func NewSubjectHandler(subjects *subject.Service, logger zerolog.Logger) *SubjectHandler {
	return &SubjectHandler{subjects: subjects, logger: logger}
}

// ListSubjects handles GET /v1/admin/subjects?role=tourist.
func (h *SubjectHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	role := subject.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		response.BadRequest(w, r, "unknown role", []models.FieldError{
			{Field: "role", Message: "must be one of tourist, admin, rescue"},
		})
		return
	}

	subjects, err := h.subjects.List(r.Context(), role)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list subjects")
		response.InternalError(w, r, "failed to list subjects")
		return
	}

	list := models.SubjectList{Items: make([]models.Subject, 0, len(subjects))}
	for _, s := range subjects {
		list.Items = append(list.Items, toAPISubject(s))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// GetSubject handles GET /v1/admin/subjects/{subjectId}.
func (h *SubjectHandler) GetSubject(w http.ResponseWriter, r *http.Request) {
	subj, err := h.subjects.Get(r.Context(), chi.URLParam(r, "subjectId"))
	if err != nil {
		if errors.Is(err, subject.ErrSubjectNotFound) {
			response.NotFound(w, r, "subject not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to get subject")
		response.InternalError(w, r, "failed to get subject")
		return
	}
	response.JSON(w, r, http.StatusOK, toAPISubject(subj))
}
