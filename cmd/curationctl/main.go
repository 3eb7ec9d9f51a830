// Command curationctl submits, inspects and decides curation items against
// the local database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/app"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/config"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
)

func main() {
	if err := newRootCmd(openApp).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// opener builds the gate for one command invocation.
type opener func(ctx context.Context, configPath string) (*app.App, error)

func openApp(ctx context.Context, configPath string) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	// Command output goes to stdout; keep the logs to warnings.
	logger := logging.New("warn", "text")
	return app.New(ctx, cfg, app.Options{Logger: logger})
}

func newRootCmd(open opener) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "curationctl",
		Short:        "Manage the curation queue",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	// withApp opens the gate, runs fn and closes it.
	withApp := func(fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return fn(cmd, args, a)
		}
	}

	root.AddCommand(
		submitCmd(withApp),
		importCmd(withApp),
		listCmd("list", "List items", withApp),
		listCmd("pending", "List pending items", withApp),
		listCmd("history", "List approved and rejected items", withApp),
		showCmd(withApp),
		approveCmd(withApp),
		rejectCmd(withApp),
		publishCmd(withApp),
		editCmd(withApp),
		analyzeCmd(withApp),
		initCmd(),
		doctorCmd(),
	)
	return root
}

type runner func(fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error
