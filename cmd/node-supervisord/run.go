package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cardano-foundation/node-supervisor/internal/broadcast"
	"github.com/cardano-foundation/node-supervisor/internal/config"
	"github.com/cardano-foundation/node-supervisor/internal/logging"
	"github.com/cardano-foundation/node-supervisor/internal/osadapter"
	"github.com/cardano-foundation/node-supervisor/internal/persist"
	"github.com/cardano-foundation/node-supervisor/internal/telemetry"
	"github.com/cardano-foundation/node-supervisor/internal/watch"
	"github.com/cardano-foundation/node-supervisor/supervisor"
)

func newRunCommand(configPath *string) *cobra.Command {
	var forced bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the supervisor and keep the daemon alive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(cmd.Context(), *configPath, forced)
		},
	}
	cmd.Flags().BoolVar(&forced, "forced", false, "bypass the UNRECOVERABLE lockout and startup_tries exhaustion on the initial start")
	return cmd
}

func runSupervisor(ctx context.Context, configPath string, forced bool) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(filepath.Join(settings.SupervisorLogDir, "supervisor.log"))
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}

	store, err := persist.OpenSQLiteStore(ctx, settings.PersistenceDSN)
	if err != nil {
		return fmt.Errorf("open persistence store: %w", err)
	}
	defer store.Close()

	bcast := broadcast.NewHTTP()
	sup := supervisor.New(osadapter.Real(), store, logger, bcast)

	metrics, registry, err := telemetry.New()
	if err != nil {
		return fmt.Errorf("set up telemetry: %w", err)
	}
	defer metrics.Shutdown(context.Background())
	sup.SetListeners(supervisor.Listeners{
		OnStarting: func() {
			metrics.TransitionTotal.WithLabelValues("starting").Inc()
			metrics.StartupTries.Set(float64(sup.StartupTries()))
		},
		OnRunning: func() {
			metrics.TransitionTotal.WithLabelValues("running").Inc()
			metrics.StartupTries.Set(float64(sup.StartupTries()))
		},
		OnExiting:  func() { metrics.TransitionTotal.WithLabelValues("exiting").Inc() },
		OnStopping: func() { metrics.TransitionTotal.WithLabelValues("stopping").Inc() },
		OnUpdating: func() { metrics.TransitionTotal.WithLabelValues("updating").Inc() },
		OnUpdated:  func() { metrics.TransitionTotal.WithLabelValues("updated").Inc() },
		OnStopped:  func() { metrics.TransitionTotal.WithLabelValues("stopped").Inc() },
		OnCrashed: func(code int, signal string) {
			metrics.TransitionTotal.WithLabelValues("crashed").Inc()
			metrics.CrashTotal.Inc()
			metrics.StartupTries.Set(float64(sup.StartupTries()))
		},
		OnError: func(err error) {
			metrics.TransitionTotal.WithLabelValues("errored").Inc()
			metrics.RestartTotal.WithLabelValues("ipc_error").Inc()
		},
	})

	certWatcher, err := watch.New(func(root, path string) {
		if root != "tls" {
			return
		}
		logger.Info("tls material changed, restarting daemon", "path", path)
		if err := sup.Restart(context.Background(), false); err != nil {
			logger.Error("restart after tls rotation failed", "err", err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("set up file watcher: %w", err)
	}
	defer certWatcher.Close()
	if dir := filepath.Join(settings.Daemon.TLSPath, "client"); dir != "" {
		if err := certWatcher.AddDir("tls", dir); err != nil {
			logger.Warn("failed to watch tls directory", "dir", dir, "err", err.Error())
		}
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	bcast.Mount(app, supervisor.ControlAdapter{S: sup, Metrics: metrics})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"state":        sup.State().String(),
			"pid":          sup.Pid(),
			"startupTries": sup.StartupTries(),
		})
	})

	go func() {
		if err := app.Listen(settings.MetricsAddr); err != nil {
			logger.Error("control/metrics server stopped", "err", err.Error())
		}
	}()
	defer app.ShutdownWithContext(context.Background())

	faultGauge := time.NewTicker(5 * time.Second)
	defer faultGauge.Stop()
	go func() {
		for range faultGauge.C {
			metrics.ActiveFaults.Set(float64(len(sup.ActiveFaults())))
		}
	}()

	startBegin := time.Now()
	startErr := sup.Start(ctx, settings.Daemon, forced)
	metrics.ObserveDuration(ctx, "start", time.Since(startBegin))
	if startErr != nil {
		return fmt.Errorf("start daemon: %w", startErr)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("shutdown signal received, stopping daemon")
	return sup.Stop(context.Background())
}
