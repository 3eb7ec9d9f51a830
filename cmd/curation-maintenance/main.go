// Command curation-maintenance runs retention cleanup, frequency decay
// sweeps and sqlite snapshots, once or on a schedule.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/app"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/config"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "curation-maintenance",
		Short:        "Maintenance jobs for the curation queue",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	open := func(ctx context.Context) (*app.App, error) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, err
		}
		return app.New(ctx, cfg, app.Options{})
	}

	cmd.AddCommand(
		cleanupCmd(open),
		sweepCmd(open),
		backupCmd(open, &configPath),
		loopCmd(open),
	)
	return cmd
}

type opener func(ctx context.Context) (*app.App, error)

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

func cleanupCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired rejections and decided items past the retention ceiling",
		Long: `Deletes rejected items whose expiry has passed and approved or rejected
items whose status changed more than five years ago. Pending items are never
deleted. Running it twice in a row deletes nothing the second time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return runCleanup(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

func runCleanup(ctx context.Context, a *app.App, out io.Writer) error {
	res, err := a.Store.RunRetentionCleanup(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %d item(s): %d expired rejection(s), %d past the retention ceiling\n",
		res.Total(), res.ExpiredRejected, res.PastCeiling)
	return nil
}

func sweepCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "frequency-sweep",
		Short: "Persist decayed frequency counts and purge stale records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return runSweep(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

func runSweep(ctx context.Context, a *app.App, out io.Writer) error {
	res, err := a.Tracker.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Scanned %d record(s): %d decayed, %d purged\n", res.Scanned, res.Decayed, res.Purged)
	return nil
}

func backupCmd(open opener, configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take a verified sqlite snapshot and apply snapshot retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return runBackup(cmd.Context(), a, cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			svc, err := app.NewBackupService(cfg, logging.Discard())
			if err != nil {
				return err
			}
			snaps, err := svc.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(snaps) == 0 {
				fmt.Fprintln(out, "No snapshots found")
				return nil
			}
			for _, s := range snaps {
				fmt.Fprintf(out, "%s\t%s\t%.2f MB\n", s.Timestamp.Format(time.RFC3339), s.Path, float64(s.Size)/(1024*1024))
			}
			count, total, err := svc.Usage()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d snapshot(s), %.2f MB\n", count, float64(total)/(1024*1024))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <snapshot>",
		Short: "Replace the database with a snapshot",
		Long: `Verifies the snapshot and replaces the sqlite database with it. The current
database is kept aside and put back if the restore fails. Stop the server first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			svc, err := app.NewBackupService(cfg, logger)
			if err != nil {
				return err
			}
			if err := svc.Restore(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", cfg.Storage.SQLitePath(), args[0])
			return nil
		},
	})
	return cmd
}

func runBackup(ctx context.Context, a *app.App, out io.Writer) error {
	svc, err := a.BackupService()
	if err != nil {
		return err
	}
	res, err := svc.BackupNow(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Snapshot %s (%.2f MB, verified=%v, pruned=%d) in %v\n",
		res.Path, float64(res.Size)/(1024*1024), res.Verified, res.Pruned, res.Duration.Round(time.Millisecond))
	return nil
}

func loopCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "loop",
		Short: "Run cleanup and sweeps every maintenance.interval until interrupted",
		Long: `Runs retention cleanup and a frequency sweep immediately and then every
maintenance.interval. When maintenance.backup_interval is positive a snapshot
is taken on that schedule as well. A failing job is logged and retried on the
next tick.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			runLoop(ctx, a, a.Config.Maintenance)
			return nil
		},
	}
}

// runLoop blocks until ctx ends.
func runLoop(ctx context.Context, a *app.App, cfg config.MaintenanceConfig) {
	log := a.Logger.WithField("component", "maintenance")

	tick := func() {
		if res, err := a.Store.RunRetentionCleanup(ctx); err != nil {
			log.WithError(err).Error("retention cleanup failed")
		} else if res.Total() > 0 {
			log.WithField("deleted", res.Total()).Info("retention cleanup")
		}
		if res, err := a.Tracker.Sweep(ctx); err != nil {
			log.WithError(err).Error("frequency sweep failed")
		} else {
			log.WithFields(logrus.Fields{"decayed": res.Decayed, "purged": res.Purged}).Debug("frequency sweep")
		}
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var backups <-chan time.Time
	if cfg.BackupInterval > 0 {
		bt := time.NewTicker(cfg.BackupInterval)
		defer bt.Stop()
		backups = bt.C
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		case <-backups:
			if err := runBackup(ctx, a, io.Discard); err != nil {
				log.WithError(err).Error("snapshot failed")
			}
		}
	}
}
