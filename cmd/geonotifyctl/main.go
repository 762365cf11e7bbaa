// Command geonotifyctl is the GeoNotify operations CLI.
//
// Usage:
//
//	geonotifyctl migrate
//	geonotifyctl evaluate --subject usr_1 --lat 10.005 --lng 20.005
//	geonotifyctl sweep
//	geonotifyctl token --subject usr_1 --role rescue --ttl 12h
//	geonotifyctl flags set disable_push_delivery=true --reason "gateway outage"
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/geonotify/geonotify/internal/app"
	"github.com/geonotify/geonotify/internal/auth"
	"github.com/geonotify/geonotify/internal/cache"
	"github.com/geonotify/geonotify/internal/config"
	"github.com/geonotify/geonotify/internal/database"
	"github.com/geonotify/geonotify/internal/featureflags"
	"github.com/geonotify/geonotify/internal/subject"
	"github.com/geonotify/geonotify/internal/tracking"
	"github.com/geonotify/geonotify/internal/worker"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func main() {
	root := &cobra.Command{
		Use:           "geonotifyctl",
		Short:         "GeoNotify operations CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(evaluateCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(flagsCmd())

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				return database.Migrate(ctx, pool, logger)
			})
		},
	}
}

func evaluateCmd() *cobra.Command {
	var (
		subjectID string
		lat, lng  float64
		at        string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one location sample and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			sample := tracking.Sample{SubjectID: subjectID, Lat: lat, Lng: lng}
			if at != "" {
				ts, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
				sample.Timestamp = ts
			}

			return withServices(func(ctx context.Context, s *app.Services) error {
				res, err := s.Engine.EvaluateWithRetry(ctx, sample)
				if err != nil {
					return err
				}
				for _, zerr := range res.ZoneErrors {
					logger.Warn().Err(zerr).Msg("zone skipped")
				}
				for i := range res.DeliveryFailures {
					logger.Warn().Err(&res.DeliveryFailures[i]).Msg("delivery failed")
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().StringVar(&subjectID, "subject", "", "Subject ID")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude")
	cmd.Flags().StringVar(&at, "at", "", "Sample time (RFC3339), defaults to now")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func sweepCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one escalation sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(ctx context.Context, s *app.Services) error {
				job := worker.NewSweepJob(worker.SweepJobConfig{
					Config:    worker.SweepConfig{Concurrency: concurrency},
					Evaluator: s.Engine,
					Logger:    logger,
				})
				return printJSON(job.Run(ctx))
			})
		},
	}
	cmd.Flags().IntVar(&concurrency, "workers", worker.DefaultSweepConfig().Concurrency, "Concurrent evaluations")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		subjectID string
		role      string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if !subject.Role(role).Valid() {
				return fmt.Errorf("unknown role %q", role)
			}

			svc := auth.NewJWTService(auth.JWTConfig{
				SigningKey: cfg.JWTSigningKey,
				Issuer:     cfg.JWTIssuer,
				Audience:   cfg.JWTAudience,
				Expiry:     ttl,
			})
			token, expiresAt, err := svc.GenerateAccessToken(auth.Identity{SubjectID: subjectID, Role: subject.Role(role)})
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"accessToken": token,
				"expiresAt":   expiresAt.UTC().Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().StringVar(&subjectID, "subject", "", "Subject ID")
	cmd.Flags().StringVar(&role, "role", string(subject.RoleTourist), "tourist, admin or rescue")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.AccessTokenExpiry, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func flagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "List or set runtime kill switches",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every switch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFlags(func(ctx context.Context, svc *featureflags.Service) error {
				return printJSON(svc.GetAllFlags(ctx))
			})
		},
	})

	var reason string
	set := &cobra.Command{
		Use:   "set key=bool...",
		Short: "Turn switches on or off",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := make([]*featureflags.Flag, 0, len(args))
			for _, arg := range args {
				key, raw, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected key=value, got %q", arg)
				}
				value, err := strconv.ParseBool(raw)
				if err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
				updates = append(updates, &featureflags.Flag{Key: key, Value: value})
			}

			return withFlags(func(ctx context.Context, svc *featureflags.Service) error {
				if err := svc.SetFlags(ctx, updates, reason); err != nil {
					return err
				}
				return printJSON(svc.GetAllFlags(ctx))
			})
		},
	}
	set.Flags().StringVar(&reason, "reason", "", "Why the switch is changing (logged)")
	cmd.AddCommand(set)

	return cmd
}

func withFlags(fn func(ctx context.Context, svc *featureflags.Service) error) error {
	return withDatabase(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
		return fn(ctx, featureflags.NewService(featureflags.ServiceConfig{
			Repository: featureflags.NewPostgresRepository(pool),
			Logger:     logger,
		}))
	})
}

func withDatabase(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := database.Connect(ctx, database.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

func withServices(fn func(ctx context.Context, s *app.Services) error) error {
	return withDatabase(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		rdb, err := cache.Open(ctx, cache.ConfigFromEnv(), logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, reading zones from postgres")
			rdb = nil
		}
		if rdb != nil {
			defer rdb.Close()
		}

		services, err := app.Build(app.Deps{Config: cfg, Pool: pool, Redis: rdb, Logger: logger})
		if err != nil {
			return err
		}
		defer services.Close()

		return fn(ctx, services)
	})
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
