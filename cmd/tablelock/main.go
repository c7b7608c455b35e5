package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tablelock/internal/api"
	"tablelock/internal/config"
	"tablelock/internal/lock"
	"tablelock/internal/logging"
	"tablelock/internal/metrics"
	"tablelock/internal/sweeper"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:    "tablelock",
		Usage:   "exclusive, time-bounded locks on restaurant tables over HTTP",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to configuration file (YAML or TOML); defaults apply when empty",
				Sources: cli.EnvVars("TABLELOCK_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "path to a .env file loaded before the configuration",
				Value: ".env",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "show version and exit",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("tablelock %s\n", version)
					return nil
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		slog.Error("tablelock exited with error", "error", err)
		os.Exit(1)
	}
}

// serve runs the HTTP server until ctx is canceled.
func serve(ctx context.Context, cmd *cli.Command) error {
	if err := config.LoadDotEnv(cmd.String("env")); err != nil {
		return err
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Set up structured logging
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	m := metrics.New()
	reg := metrics.NewRegistry()
	m.Register(reg)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, sweep, err := newStore(ctx, cfg, logger, m, reg)
	if err != nil {
		return err
	}

	srv := api.New(store, logger, api.WithMetrics(m, reg)).HTTPServer(cfg.Server)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", srv.Addr, "backend", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if sweep != nil {
		sweep.Start()
	}

	// Notify systemd that we're ready
	notifySystemd(logger)

	// Start systemd watchdog if configured
	stopWatchdog := startWatchdog(logger)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	if stopWatchdog != nil {
		stopWatchdog()
	}

	// Notify systemd we're stopping
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down http server", "error", err)
	}

	if sweep != nil {
		sweep.Stop(shutdownCtx)
	}

	if err := store.Close(); err != nil {
		logger.Error("failed to close store", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

// newStore builds the configured lock store. The sweeper is only returned for
// the memory backend with a non-empty schedule; Redis expires keys itself.
func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, reg prometheus.Registerer) (lock.Store, *sweeper.Sweeper, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		// Verify Redis connection
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Address, err)
		}
		logger.Info("connected to Redis", "address", cfg.Redis.Address)

		return lock.NewRedisStore(redisClient, cfg.Redis.KeyPrefix), nil, nil

	default:
		store := lock.NewMemoryStore()
		metrics.RegisterLockGauge(reg, store.Len)

		if cfg.Store.SweepSchedule == "" {
			return store, nil, nil
		}

		sweep := sweeper.New(store, logger, sweeper.WithReclaimedCounter(m.Reclaimed))
		if err := sweep.Schedule(cfg.Store.SweepSchedule); err != nil {
			return nil, nil, err
		}
		return store, sweep, nil
	}
}

// notifySystemd sends the ready notification to systemd if running under systemd.
func notifySystemd(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd", "error", err)
	} else if sent {
		logger.Debug("notified systemd ready")
	}
}

// startWatchdog starts the systemd watchdog if configured.
// Returns a function to stop the watchdog, or nil if not running.
func startWatchdog(logger *slog.Logger) func() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return nil
	}

	logger.Info("starting systemd watchdog", "interval", interval)

	ticker := time.NewTicker(interval / 2)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				ticker.Stop()
				return
			case <-ticker.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()

	return func() {
		close(done)
	}
}
