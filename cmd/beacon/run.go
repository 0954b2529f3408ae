package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"helpdesk-hq/beacon/pkg/audit"
	"helpdesk-hq/beacon/pkg/config"
	"helpdesk-hq/beacon/pkg/engine"
	"helpdesk-hq/beacon/pkg/policy"
	"helpdesk-hq/beacon/pkg/scorer"
	"helpdesk-hq/beacon/pkg/server"
	"helpdesk-hq/beacon/pkg/state"
	"helpdesk-hq/beacon/pkg/telemetry/health"
	"helpdesk-hq/beacon/pkg/telemetry/logging"
	"helpdesk-hq/beacon/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Beacon decision server",
	Long: `Start the Beacon decision server with the specified configuration.

The server exposes the scoring endpoint, decision history, health probes,
and Prometheus metrics.

Examples:
  # Start with default config
  beacon run

  # Start with custom config
  beacon run --config /etc/beacon/config.yaml

  # Override listen address
  beacon run --listen 0.0.0.0:8080

  # Validate config without starting server
  beacon run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Beacon v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Policy
	pol, err := policy.Load(cfg.Policy.FilePath)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}
	fmt.Printf("✓ Policy loaded (version %s)\n", pol.Version)

	// Model artifacts
	artifacts, err := scorer.LoadArtifacts(cfg.Artifacts.Dir)
	if err != nil {
		return fmt.Errorf("failed to load model artifacts: %w", err)
	}
	fmt.Printf("✓ Model artifacts loaded (version %s)\n", artifacts.Model.Version())

	// Conversation state store
	var backend state.Backend
	switch cfg.State.Backend {
	case "sqlite":
		backend, err = state.NewSQLiteBackendWithConfig(state.SQLiteBackendConfig{
			DBPath:      cfg.State.SQLitePath,
			TTL:         cfg.State.TTL,
			BusyTimeout: cfg.State.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to open state database: %w", err)
		}
	case "memory":
		backend = state.NewMemoryBackend()
	default:
		return fmt.Errorf("unsupported state backend: %s", cfg.State.Backend)
	}
	defer backend.Close()

	store := state.NewStore(backend, logger)
	fmt.Printf("✓ State store initialized (%s)\n", cfg.State.Backend)

	// Expired state sweeper (sqlite only; memory holds state per process)
	if cfg.State.Backend == "sqlite" && cfg.State.SweepSchedule != "" {
		sweeper := state.NewSweeper(backend, cfg.State.SweepSchedule, cfg.State.TTL, logger)
		if err := sweeper.Start(ctx); err != nil {
			slog.Warn("failed to start state sweeper", "error", err)
		} else {
			defer sweeper.Stop()
		}
	}

	// Metrics
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector("beacon", nil)
	}

	// Decision engine
	eng, err := engine.New(engine.Config{
		Store:        store,
		Scorer:       artifacts.Model,
		Policy:       pol,
		FeatureOrder: artifacts.FeatureOrder,
		ModelVersion: artifacts.Model.Version(),
		Logger:       logger,
		Metrics:      collector,
	})
	if err != nil {
		return fmt.Errorf("failed to create decision engine: %w", err)
	}
	fmt.Println("✓ Decision engine ready")

	// Policy hot reload
	if cfg.Policy.Watch {
		watcher, err := policy.NewWatcher(cfg.Policy.FilePath, eng.SetPolicy, logger)
		if err != nil {
			slog.Warn("failed to start policy watcher", "error", err)
		} else {
			defer watcher.Close()
			fmt.Println("✓ Policy hot reload enabled")
		}
	}

	// Audit trail
	var auditStore *audit.Store
	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		auditStore, err = audit.NewStore(&audit.StoreConfig{
			Path: cfg.Audit.SQLitePath,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to open audit store: %w", err)
		}
		defer auditStore.Close()

		recorder = audit.NewRecorder(auditStore, &audit.RecorderConfig{
			Enabled:      true,
			AsyncBuffer:  cfg.Audit.AsyncBuffer,
			WriteTimeout: cfg.Audit.WriteTimeout,
		}, logger)
		defer recorder.Close()

		retention := audit.NewRetentionScheduler(auditStore, &audit.RetentionConfig{
			RetentionDays: cfg.Audit.RetentionDays,
			PruneSchedule: cfg.Audit.PruneSchedule,
		}, logger)
		if err := retention.Start(ctx); err != nil {
			slog.Warn("failed to start audit retention scheduler", "error", err)
		} else {
			defer retention.Stop()
		}

		fmt.Println("✓ Audit trail initialized")
	}

	// Health checks
	checker := health.New(2 * time.Second)
	checker.Register("state_store", store.HealthCheck)

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	srv := server.NewServer(server.Options{
		Config:     &cfg.Server,
		MetricsCfg: &cfg.Telemetry.Metrics,
		Engine:     eng,
		Recorder:   recorder,
		AuditStore: auditStore,
		Health:     checker,
		Metrics:    collector,
		Logger:     logger,
	})

	// Blocks until signal, context cancellation, or server error
	return srv.Start(ctx)
}
