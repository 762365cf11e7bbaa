// Package main provides the entrypoint for the GeoNotify worker: it consumes
// location samples from Pub/Sub and runs the periodic escalation sweep.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/geonotify/geonotify/internal/app"
	"github.com/geonotify/geonotify/internal/cache"
	"github.com/geonotify/geonotify/internal/config"
	"github.com/geonotify/geonotify/internal/database"
	"github.com/geonotify/geonotify/internal/telemetry"
	"github.com/geonotify/geonotify/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = telemetry.ServiceWorker

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting GeoNotify worker")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	pool, err := database.Connect(ctx, database.ConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	rdb, err := cache.Open(ctx, cache.ConfigFromEnv(), log)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, zone cache disabled")
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var psClient *pubsub.Client
	if cfg.PubSubProjectID != "" {
		psClient, err = pubsub.NewClient(ctx, cfg.PubSubProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub client")
		}
		defer psClient.Close()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set, running the sweep only")
	}

	services, err := app.Build(app.Deps{
		Config: cfg,
		Pool:   pool,
		Redis:  rdb,
		PubSub: psClient,
		Logger: log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build services")
	}
	defer services.Close()

	sweep := worker.NewSweepJob(worker.SweepJobConfig{
		Config: worker.SweepConfig{
			Interval:    cfg.SweepInterval,
			Concurrency: cfg.SweepConcurrency,
		},
		Evaluator: services.Engine,
		Logger:    log.With().Str("job", "escalation_sweep").Logger(),
		Paused:    services.SweepPaused,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweep.Start(ctx)
	}()

	if psClient != nil {
		handler := worker.NewPubSubHandler(worker.PubSubConfig{
			Client:           psClient,
			SubscriptionName: cfg.PubSubSamplesSubscription,
			Processor:        worker.NewProcessor(services.Engine, sweep, log),
			Logger:           log,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
				cancel()
			}
		}()
	}

	// Health endpoint for the container platform.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"sweep":   sweep.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
