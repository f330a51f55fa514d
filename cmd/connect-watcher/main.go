package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/connect-watcher/pkg/api"
	"github.com/cuemby/connect-watcher/pkg/config"
	"github.com/cuemby/connect-watcher/pkg/log"
	"github.com/cuemby/connect-watcher/pkg/metrics"
	"github.com/cuemby/connect-watcher/pkg/watcher"
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
	Use:   "connect-watcher",
	Short: "Kafka Connect watcher - monitor and auto-remediate connectors",
	Long: `connect-watcher scans Kafka Connect clusters on an interval, classifies
every connector and its tasks, and applies the configured remediation actions
(restart, pause, cycle, notify) to unhealthy connectors with bounded backoff.

Metrics are exposed for Prometheus and, optionally, as CloudWatch EMF documents.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWatcher,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without starting the watcher",
	Long: `Load and validate the configuration file, then build every cluster,
rule, action and notification channel exactly as the watcher would.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		rt, err := build(cfg)
		if err != nil {
			return err
		}
		defer rt.close()

		fmt.Printf("Configuration is valid: %d cluster(s)\n", len(rt.clusters))
		for _, h := range rt.clusters {
			fmt.Printf("  %s: %d rule(s)\n", h.Name(), len(h.Rules()))
			for _, r := range h.Rules() {
				sum := r.Summary()
				fmt.Printf("    rule %d: %d include, %d exclude pattern(s), actions %v\n",
					sum.Index, sum.Include, sum.Exclude, sum.Actions)
			}
		}
		if names := rt.registry.Names(); len(names) > 0 {
			fmt.Printf("  notification channels: %v\n", names)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("connect-watcher version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"connect-watcher version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringP("config-file", "c", "", "Path to the configuration file (default $CONNECT_WATCHER_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().Int("concurrency", 0, "Number of concurrent workers; overrides the configuration")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the configuration and applies flag overrides, then sets
// up logging
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config-file")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if jsonOut, _ := cmd.Flags().GetBool("log-json"); jsonOut {
		cfg.Logging.JSON = true
	}
	if cmd.Flags().Lookup("concurrency") != nil {
		if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
			cfg.Concurrency = n
		}
	}

	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	log.Init(log.Config{Level: level, JSONOutput: cfg.Logging.JSON})
	return cfg, nil
}

func runWatcher(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	rt, err := build(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	metrics.SetVersion(Version)
	metrics.SetCriticalComponents("watcher")

	w := watcher.New(rt.clusters, watcher.Config{
		Interval:    cfg.WatchInterval.Std(),
		Concurrency: cfg.Concurrency,
		Sink:        rt.sink,
		Events:      rt.broker,
	})

	collector := metrics.NewCollector(w, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	var server *api.Server
	errCh := make(chan error, 1)
	if cfg.Server.Address != "" {
		server = api.NewServer(w, rt.recorder, api.Options{
			Address:      cfg.Server.Address,
			AllowOrigins: cfg.Server.AllowOrigins,
			Metrics:      cfg.Prometheus.On(),
		})
		go func() {
			if err := server.Start(); err != nil {
				errCh <- fmt.Errorf("operator API error: %w", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() {
		runErr <- w.Run(ctx)
	}()

	log.Logger.Info().
		Str("version", Version).
		Int("clusters", len(rt.clusters)).
		Msg("connect-watcher running")

	select {
	case err = <-runErr:
	case err = <-errCh:
		log.Logger.Error().Err(err).Msg("Shutting down after server failure")
		stop()
		<-runErr
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := server.Shutdown(shutdownCtx); serr != nil {
			log.Logger.Warn().Err(serr).Msg("Operator API shutdown failed")
		}
	}
	return err
}
