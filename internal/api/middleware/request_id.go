// Package middleware provides HTTP middleware for the GeoNotify API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/geonotify/geonotify/internal/auth"
)

const (
	requestIDHeader = "X-Request-Id"
	maxRequestIDLen = 64
)

// requestInfo is shared by every layer handling one request. Auth records the
// caller on it so the access log and panic recovery, which wrap Auth, can
// report who made the request.
type requestInfo struct {
	id     string
	caller *auth.Identity
}

type requestInfoKey struct{}

// RequestID assigns the request an ID and echoes it in X-Request-Id. A client
// supplied ID is kept when it is short and made of [A-Za-z0-9._-] only.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !validRequestID(id) {
			id = "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestInfoKey{}, &requestInfo{id: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		return info.id
	}
	return ""
}

// callerFromContext returns the caller Auth recorded for this request, if any.
func callerFromContext(ctx context.Context) (auth.Identity, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(*requestInfo)
	if !ok || info.caller == nil {
		return auth.Identity{}, false
	}
	return *info.caller, true
}
