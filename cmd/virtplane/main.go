package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/virtplane/pkg/api"
	"github.com/cuemby/virtplane/pkg/log"
	"github.com/cuemby/virtplane/pkg/manager"
	"github.com/cuemby/virtplane/pkg/manifest"
	"github.com/cuemby/virtplane/pkg/metrics"
	"github.com/cuemby/virtplane/pkg/reconciler"
	"github.com/cuemby/virtplane/pkg/scheduler"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "virtplane",
	Short: "virtplane - virtualization control plane",
	Long: `virtplane keeps the state of a virtualization platform in memory:
clusters, hypervisor nodes, virtual machines, storage, networks, load
balancers, VPNs, BGP and security groups. It places pending VMs on nodes,
watches node heartbeats and exposes health and Prometheus metrics.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"virtplane version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "virtplane version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane",
	Long: `Run the control plane in the foreground.

The stores start empty. Manifests listed in the config file and given with
--file are applied in order before the reconciler and scheduler start.

Examples:
  # Run with defaults
  virtplane serve

  # Run with a config file and seed state
  virtplane serve --config virtplane.yaml -f inventory.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file")
	serveCmd.Flags().StringSliceP("file", "f", nil, "Manifest to apply at startup (repeatable)")
	serveCmd.Flags().String("health-addr", "", "Address for /health, /ready and /metrics (overrides config)")
	serveCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	serveCmd.Flags().Bool("log-json", false, "Log as JSON")
}

// loadConfig reads --config when given and applies flag overrides
func loadConfig(cmd *cobra.Command) (*manager.Config, error) {
	cfg := manager.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := manager.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("health-addr") {
		cfg.HealthAddr, _ = flags.GetString("health-addr")
	}
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		cfg.Log.Level = log.ParseLevel(level)
	}
	if flags.Changed("log-json") {
		cfg.Log.JSONOutput, _ = flags.GetBool("log-json")
	}
	if flags.Changed("file") {
		files, _ := flags.GetStringSlice("file")
		cfg.Manifests = append(cfg.Manifests, files...)
	}

	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log.Init(cfg.Log)
	logger := log.WithComponent("serve")
	metrics.SetVersion(Version)

	mgr, err := manager.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	defer mgr.Shutdown()

	applier := manifest.NewApplier(mgr)
	for _, path := range cfg.Manifests {
		applied, err := applier.ApplyFile(path)
		if err != nil {
			return err
		}
		logger.Info().Str("file", path).Int("resources", len(applied)).Msg("Manifest applied")
	}

	recon := reconciler.NewReconciler(mgr)
	recon.Start()
	defer recon.Stop()

	sched := scheduler.NewScheduler(mgr)
	sched.Start()
	defer sched.Stop()

	collector := manager.NewMetricsCollector(mgr)
	collector.Start()
	defer collector.Stop()

	healthServer := api.NewHealthServer(mgr, Version)
	errCh := make(chan error, 1)
	go func() {
		if err := healthServer.Start(cfg.HealthAddr); err != nil {
			errCh <- fmt.Errorf("health server error: %w", err)
		}
	}()

	logger.Info().
		Str("health_addr", cfg.HealthAddr).
		Dur("reconcile_interval", cfg.ReconcileInterval).
		Dur("schedule_interval", cfg.ScheduleInterval).
		Msg("Control plane running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err = <-errCh:
		logger.Error().Err(err).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := healthServer.Shutdown(ctx); shutdownErr != nil {
		logger.Warn().Err(shutdownErr).Msg("Health server did not stop cleanly")
	}

	return err
}
