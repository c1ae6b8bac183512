package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/muezzin/internal/daemon"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the adhan daemon",
		Long: `Start the muezzin daemon.

The daemon opens the SQLite database (creating it if it doesn't exist),
runs a reschedule pass, keeps the next prayer's alarm registered, plays the
adhan when it fires, and serves the control API when enabled.

Example:
  muezzin run --config muezzin.yaml
  muezzin run --db /var/lib/muezzin/muezzin.db --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(rootOpts, database, cmd)
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runDaemon(opts *RootOptions, database string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if database != "" {
		cfg.Database = database
	}

	level := cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("opening daemon", "db", cfg.Database, "timezone", cfg.Timezone, "backend", cfg.Preferences.Backend)
	d, err := daemon.Open(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start daemon", err)
	}
	defer func() {
		if closeErr := d.Close(); closeErr != nil {
			logger.Error("error closing daemon", "error", closeErr)
		}
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "muezzin started. Press Ctrl-C to stop.")
	if cfg.API.Enabled {
		fmt.Fprintf(cmd.OutOrStdout(), "Control API on http://%s\n", cfg.API.Listen)
	}

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "daemon error", err)
	}

	logger.Info("daemon stopped gracefully")
	return nil
}
