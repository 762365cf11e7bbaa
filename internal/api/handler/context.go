package handler

import (
	"context"

	"github.com/geonotify/geonotify/internal/api/middleware"
	"github.com/geonotify/geonotify/internal/auth"
)

// GetSubjectID retrieves the authenticated subject ID from the context.
func GetSubjectID(ctx context.Context) string {
	return middleware.GetSubjectID(ctx)
}

// getIdentity returns the caller's identity; handlers behind Auth always have one.
func getIdentity(ctx context.Context) auth.Identity {
	id, _ := middleware.GetIdentity(ctx)
	return id
}
