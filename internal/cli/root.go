// Package cli implements mfctl, the operator command line for masterfile
// diffs, the day counter and publications.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/masterfile/internal/application"
	"github.com/JonMunkholm/masterfile/internal/config"
	"github.com/JonMunkholm/masterfile/internal/logging"
)

// RootCmd returns mfctl with all subcommands attached.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mfctl",
		Short: "Masterfile change detection and publication",
		Long: `mfctl compares masterfile versions, shows the day counter and publishes
edited masterfiles from local files.

Configuration is read from the environment (and .env), the same as the server.`,
		SilenceUsage: true,
	}

	root.AddCommand(DiffCmd())
	root.AddCommand(CounterCmd())
	root.AddCommand(PublishCmd())
	root.AddCommand(BackupsCmd())
	return root
}

// openApp loads configuration and assembles the service. Logs go to stderr
// so command output stays clean.
func openApp(ctx context.Context, opts application.Options) (*application.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	app, err := application.New(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("startup: %w", err)
	}
	return app, nil
}
