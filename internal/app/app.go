// Package app wires the Postgres-backed stores, the cached zone catalog, the
// notification dispatchers and the tracking engine shared by the binaries.
package app

import (
	"context"

	"cloud.google.com/go/pubsub/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/api/handler"
	"github.com/geonotify/geonotify/internal/api/middleware"
	"github.com/geonotify/geonotify/internal/config"
	"github.com/geonotify/geonotify/internal/device"
	"github.com/geonotify/geonotify/internal/featureflags"
	"github.com/geonotify/geonotify/internal/notification"
	"github.com/geonotify/geonotify/internal/provider/resilience"
	"github.com/geonotify/geonotify/internal/subject"
	"github.com/geonotify/geonotify/internal/tracking"
	"github.com/geonotify/geonotify/internal/zone"
)

// PushGatewayName is the upstream name of the push gateway in the registry.
const PushGatewayName = "push-gateway"

// Deps are the connections a binary opened before calling Build.
type Deps struct {
	Config *config.Config
	Pool   *pgxpool.Pool

	// Redis and PubSub may be nil.
	Redis  *redis.Client
	PubSub *pubsub.Client

	Logger zerolog.Logger
}

// Services holds everything built on top of Deps.
type Services struct {
	Engine    *tracking.Engine
	Zones     *zone.Service
	Subjects  *subject.Service
	Devices   *device.Service
	Log       notification.Log
	Flags     *featureflags.Service
	Upstreams *resilience.Registry

	publisher *pubsub.Publisher
}

// Build wires the services. Close must be called on shutdown.
func Build(deps Deps) (*Services, error) {
	cfg := deps.Config
	logger := deps.Logger

	depMetrics, err := middleware.NewDependencyMetrics()
	if err != nil {
		return nil, err
	}
	engineMetrics, err := tracking.NewMetrics()
	if err != nil {
		return nil, err
	}

	zoneRepo := zone.NewPostgresRepository(deps.Pool)
	catalog := zone.NewCachedCatalog(zoneRepo, deps.Redis, zone.CacheConfig{
		TTL:     cfg.ZoneCacheTTL,
		Logger:  logger.With().Str("component", "zone_cache").Logger(),
		Metrics: depMetrics,
	})

	subjects := subject.NewPostgresStore(deps.Pool)
	devices := device.NewPostgresRepository(deps.Pool)
	log := notification.NewPostgresLog(deps.Pool)
	upstreams := resilience.NewRegistry()
	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewPostgresRepository(deps.Pool),
		Logger:     logger.With().Str("component", "feature_flags").Logger(),
	})

	s := &Services{
		Zones: zone.NewService(zoneRepo, zone.ServiceConfig{
			Logger:      logger,
			Invalidator: catalog,
		}),
		Subjects:  subject.NewService(subjects, zoneRepo, logger),
		Devices:   device.NewService(devices),
		Log:       log,
		Flags:     flags,
		Upstreams: upstreams,
	}

	var routes []notification.Route
	if cfg.PushGatewayURL != "" {
		clientCfg := resilience.DefaultClientConfig(PushGatewayName)
		clientCfg.Registry = upstreams
		sender := notification.NewGatewaySender(notification.GatewayConfig{
			URL:           cfg.PushGatewayURL,
			RatePerSecond: cfg.PushRatePerSecond,
			Client:        resilience.NewClient(clientCfg),
			Metrics:       depMetrics,
			Logger:        logger,
		})
		push := notification.NewPushDispatcher(devices, sender, notification.PushConfig{
			Concurrency: cfg.PushConcurrency,
			SendTimeout: cfg.PushSendTimeout,
			Logger:      logger,
		})
		routes = append(routes, notification.Route{
			Dispatcher: push,
			Enabled:    switchedOff(flags, featureflags.FlagDisablePushDelivery),
		})
	} else {
		logger.Warn().Msg("PUSH_GATEWAY_URL not set, push delivery disabled")
	}

	if deps.PubSub != nil && cfg.PubSubEscalationTopic != "" {
		s.publisher = deps.PubSub.Publisher(cfg.PubSubEscalationTopic)
		routes = append(routes, notification.Route{
			Dispatcher: notification.NewPubSubDispatcher(s.publisher, logger),
			Kinds:      []notification.Kind{notification.KindEscalation},
			Enabled:    switchedOff(flags, featureflags.FlagDisableEscalationPublish),
		})
	}

	s.Engine = tracking.NewEngine(tracking.Config{
		Zones:      catalog,
		Subjects:   subjects,
		Log:        log,
		Dispatcher: notification.NewMultiDispatcher(routes...),
		Metrics:    engineMetrics,
		Logger:     logger.With().Str("component", "engine").Logger(),
	})

	return s, nil
}

// switchedOff returns a route gate that is open while the kill switch key is off.
func switchedOff(flags *featureflags.Service, key string) func(context.Context) bool {
	return func(ctx context.Context) bool {
		return !flags.IsEnabled(ctx, key)
	}
}

// SweepPaused reports whether the escalation sweep kill switch is on.
func (s *Services) SweepPaused(ctx context.Context) bool {
	return s.Flags.IsEnabled(ctx, featureflags.FlagDisableEscalationSweep)
}

// ReadinessChecks returns the dependency probes for the ops endpoints.
func ReadinessChecks(deps Deps) []handler.Check {
	checks := []handler.Check{{Name: "postgres", Fn: deps.Pool.Ping}}
	if deps.Redis != nil {
		checks = append(checks, handler.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		}})
	}
	return checks
}

// Close flushes pending Pub/Sub publishes.
func (s *Services) Close() {
	if s.publisher != nil {
		s.publisher.Stop()
	}
}
