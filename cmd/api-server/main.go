package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/practice-booking/internal/api"
	"github.com/hackgods/practice-booking/internal/appointment"
	"github.com/hackgods/practice-booking/internal/auth"
	"github.com/hackgods/practice-booking/internal/availability"
	"github.com/hackgods/practice-booking/internal/config"
	"github.com/hackgods/practice-booking/internal/db"
	"github.com/hackgods/practice-booking/internal/fanout"
	"github.com/hackgods/practice-booking/internal/identity"
	"github.com/hackgods/practice-booking/internal/license"
	"github.com/hackgods/practice-booking/internal/notification"
	redisclient "github.com/hackgods/practice-booking/internal/redis"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "api-server",
		Short: "Practice booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and push channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := db.Migrate(ctx, pool)
			if err != nil {
				return err
			}
			logger.Info().Int("applied", n).Msg("migrations complete")
			return nil
		},
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()
}

func runServer(migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	logger.Info().Str("env", cfg.Env).Str("port", cfg.HTTPPort).Str("version", version).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		return err
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	if migrate {
		n, err := db.Migrate(rootCtx, pgPool)
		if err != nil {
			return err
		}
		logger.Info().Int("applied", n).Msg("migrations complete")
	}

	// Redis is optional: without it pair locks are process-local and push
	// events stay on this instance.
	var rdb *redis.Client
	var relay *redisclient.Relay
	var locker redisclient.Locker
	rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	switch {
	case errors.Is(err, redisclient.ErrRedisDisabled):
		logger.Warn().Msg("redis disabled, using in-process pair locks")
		rdb = nil
		locker = redisclient.NewLocalPairLocker()
	case err != nil:
		return err
	default:
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")
		locker = redisclient.NewRedisPairLocker(rdb, cfg.LockTTL)
		relay = redisclient.NewRelay(rdb, cfg.FanoutChannel, logger)
	}

	hub := fanout.NewHub(logger)
	if relay != nil {
		hub.SetRelay(relay)
	}

	dispatcher := notification.NewDispatcher(notification.NewPgStore(pgPool), hub, cfg.NotifyQueueSize, cfg.NotifyWorkers, logger)

	directory := identity.NewPgDirectory(pgPool)
	availRepo := availability.NewPgRepository(pgPool)
	apptRepo := appointment.NewPgRepository(pgPool)

	licenses := license.NewService(license.NewPgRepository(pgPool), directory, dispatcher, logger)
	appointments := appointment.NewService(apptRepo, directory, licenses, locker, dispatcher, cfg, logger)

	router := api.NewRouter(api.RouterConfig{
		Availability:  availability.NewService(availRepo, logger),
		Slots:         availability.NewResolver(availRepo, apptRepo),
		Appointments:  appointments,
		Licenses:      licenses,
		Notifications: notification.NewService(notification.NewPgStore(pgPool)),
		Hub:           hub,
		Tokens:        auth.NewTokens(cfg.JWTSecret, 0),
		PgPool:        pgPool,
		Redis:         rdb,
		Logger:        logger,
		Env:           cfg.Env,
		Version:       version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The dispatcher outlives the HTTP server so that notifications queued by
	// in-flight requests are still persisted.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down api-server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stopDispatch()
		return err
	})

	g.Go(func() error {
		return hub.Run(gctx, cfg.HeartbeatInterval, cfg.SweepInterval)
	})

	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})

	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx, hub.Deliver)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("api-server stopped with error")
		return err
	}
	logger.Info().Msg("api-server stopped")
	return nil
}
