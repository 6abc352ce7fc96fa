package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"horse.fit/gazette/internal/cleanup"
	"horse.fit/gazette/internal/cli"
	"horse.fit/gazette/internal/config"
	"horse.fit/gazette/internal/db"
	"horse.fit/gazette/internal/httpapi"
	"horse.fit/gazette/internal/logging"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8090, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	noSchedule := fs.Bool("no-schedule", false, "Disable the cron maintenance schedule")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	if !*noSchedule {
		scheduler, err := startMaintenanceSchedule(ctx, pool, cfg, logger)
		if err != nil {
			logger.Error().Err(err).Msg("maintenance schedule failed to start")
			fmt.Fprintf(os.Stderr, "Failed to start maintenance schedule: %v\n", err)
			return 1
		}
		defer func() {
			<-scheduler.Stop().Done()
		}()
	}

	srv := httpapi.NewServer(pool, logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		AllowedOrigins:  cfg.CORSAllowedOriginsList(),
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}

// startMaintenanceSchedule runs the full cleanup sweep on the cleanup cron
// and the stuck-processing recovery on the tighter sweep cron. An empty
// expression leaves that job unscheduled.
func startMaintenanceSchedule(ctx context.Context, pool *db.Pool, cfg *config.Config, logger zerolog.Logger) (*cron.Cron, error) {
	runner := cleanup.NewRunner(pool, logger)
	scheduler := cron.New()

	if expr := strings.TrimSpace(cfg.CleanupCron); expr != "" {
		_, err := scheduler.AddFunc(expr, func() {
			if _, err := runner.RunAll(ctx); err != nil {
				logger.Error().Err(err).Msg("scheduled cleanup sweep failed")
			}
		})
		if err != nil {
			return nil, fmt.Errorf("schedule cleanup cron %q: %w", expr, err)
		}
	}

	if expr := strings.TrimSpace(cfg.SweepCron); expr != "" {
		_, err := scheduler.AddFunc(expr, func() {
			if _, err := runner.Run(ctx, cleanup.JobSweepStuck); err != nil {
				logger.Error().Err(err).Msg("scheduled stuck sweep failed")
			}
		})
		if err != nil {
			return nil, fmt.Errorf("schedule sweep cron %q: %w", expr, err)
		}
	}

	scheduler.Start()
	logger.Info().
		Str("cleanup_cron", cfg.CleanupCron).
		Str("sweep_cron", cfg.SweepCron).
		Msg("maintenance schedule started")
	return scheduler, nil
}
