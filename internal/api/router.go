// Package api provides the HTTP API for GeoNotify.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/api/handler"
	"github.com/geonotify/geonotify/internal/api/middleware"
	"github.com/geonotify/geonotify/internal/device"
	"github.com/geonotify/geonotify/internal/featureflags"
	"github.com/geonotify/geonotify/internal/notification"
	"github.com/geonotify/geonotify/internal/provider/resilience"
	"github.com/geonotify/geonotify/internal/subject"
	"github.com/geonotify/geonotify/internal/tracking"
	"github.com/geonotify/geonotify/internal/zone"
)

// Engine is the part of the tracking engine the HTTP surface uses.
type Engine interface {
	handler.LocationEvaluator
	handler.ActiveAlertLister
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	RequireTLS       bool
	CORSAllowOrigins []string

	Tokens          middleware.TokenValidator
	Engine          Engine
	ZoneService     *zone.Service
	SubjectService  *subject.Service
	DeviceService   *device.Service
	NotificationLog notification.Log

	// Flags is optional; without it the /v1/admin/flags routes are absent.
	Flags *featureflags.Service

	// ReadinessChecks run on /v1/ops/ready and /v1/ops/status.
	ReadinessChecks []handler.Check
	Upstreams       *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "geonotify-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(corsHandler(cfg.CORSAllowOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	var degradations handler.DegradationReporter
	if cfg.Flags != nil {
		degradations = cfg.Flags
	}
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.ReadinessChecks, cfg.Upstreams, degradations)
	locationHandler := handler.NewLocationHandler(cfg.Engine, cfg.Logger)
	meHandler := handler.NewMeHandler(cfg.SubjectService, cfg.Logger)
	deviceHandler := handler.NewDeviceHandler(cfg.DeviceService, cfg.Logger)
	zoneHandler := handler.NewZoneHandler(cfg.ZoneService, cfg.Logger)
	subjectHandler := handler.NewSubjectHandler(cfg.SubjectService, cfg.Logger)
	notificationHandler := handler.NewNotificationHandler(cfg.NotificationLog, cfg.Engine, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.Tokens)
	adminOnly := middleware.RequireRole(subject.RoleAdmin)
	responseTeam := middleware.RequireRole(subject.RoleAdmin, subject.RoleRescue)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(middleware.StandardRateLimit))
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware, adminOnly).Get("/status", opsHandler.SystemStatus)
		})

		// Everything below requires a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.Route("/me", func(r chi.Router) {
				r.Use(middleware.RateLimitBySubject(middleware.StandardRateLimit))
				r.Get("/", meHandler.GetMe)
				r.Put("/", meHandler.Register)

				r.With(middleware.RateLimitBySubject(middleware.LocationRateLimit)).
					Post("/location", locationHandler.CheckLocation)

				r.Route("/subscriptions", func(r chi.Router) {
					r.Post("/", meHandler.Subscribe)
					r.Delete("/{zoneId}", meHandler.Unsubscribe)
				})

				r.Route("/devices", func(r chi.Router) {
					r.Get("/", deviceHandler.ListDevices)
					r.Post("/", deviceHandler.RegisterDevice)
					r.Delete("/{deviceId}", deviceHandler.UnregisterDevice)
				})
			})

			r.Route("/zones", func(r chi.Router) {
				r.Use(middleware.RateLimitBySubject(middleware.StandardRateLimit))
				r.Get("/", zoneHandler.ListZones)
				r.Get("/{zoneId}", zoneHandler.GetZone)

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.Use(middleware.RateLimitBySubject(middleware.AdminRateLimit))
					r.Post("/", zoneHandler.CreateZone)
					r.Put("/{zoneId}", zoneHandler.UpdateZone)
					r.Delete("/{zoneId}", zoneHandler.DeleteZone)
				})
			})

			// Response-team views.
			r.Group(func(r chi.Router) {
				r.Use(responseTeam)
				r.Use(middleware.RateLimitBySubject(middleware.StandardRateLimit))
				r.Get("/notifications", notificationHandler.ListNotifications)
				r.Get("/alerts/active", notificationHandler.ListActiveAlerts)
			})

			r.Route("/admin/subjects", func(r chi.Router) {
				r.Use(adminOnly)
				r.Use(middleware.RateLimitBySubject(middleware.StandardRateLimit))
				r.Get("/", subjectHandler.ListSubjects)
				r.Get("/{subjectId}", subjectHandler.GetSubject)
			})

			if cfg.Flags != nil {
				flagsHandler := handler.NewFeatureFlagsHandler(cfg.Flags, cfg.Logger)
				r.Route("/admin/flags", func(r chi.Router) {
					r.Use(adminOnly)
					r.Use(middleware.RateLimitBySubject(middleware.AdminRateLimit))
					r.Get("/", flagsHandler.ListFeatureFlags)
					r.Put("/", flagsHandler.UpsertFeatureFlags)
					r.Post("/invalidate", flagsHandler.InvalidateCache)
				})
			}
		})
	})

	return r
}

// corsHandler allows the browser client and the response-team dashboard.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Location", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           600,
	})
	return c.Handler
}

var _ Engine = (*tracking.Engine)(nil)
