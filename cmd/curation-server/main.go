// Command curation-server serves the curation queue over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/app"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/config"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "curation-server",
		Short: "Serve the curation queue API",
		Long: `Serves the curation queue as a JSON HTTP API together with /api/health
and Prometheus metrics on /metrics.

Configuration comes from curation.yaml (or --config) and CURATION_* environment
variables. The policy file is reloaded on change when curation.watch_policy is set.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run serves until ctx ends. Startup errors are returned before anything listens.
func run(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := app.New(ctx, cfg, app.Options{Registerer: reg})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.WatchPolicy(); err != nil {
		return fmt.Errorf("failed to watch policy: %w", err)
	}

	srv := server.New(a.Store, server.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RequestsPerSec:  cfg.Server.RequestsPerSec,
		Burst:           cfg.Server.Burst,
		Gatherer:        reg,
	}, a.Logger)

	_, errCh, err := srv.Start(ctx)
	if err != nil {
		return err
	}
	return <-errCh
}
