package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/muezzin/internal/daemon"
	"github.com/roach88/muezzin/internal/store"
)

// StatusView is the output of the status command.
type StatusView struct {
	Database     string                `json:"database"`
	Reschedule   store.RescheduleState `json:"reschedule"`
	NextAlarm    *store.AlarmRecord    `json:"next_alarm,omitempty"`
	RecentPasses []store.PassRecord    `json:"recent_passes"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		database string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the reschedule state and the pending alarm",
		Long: `Read the reschedule flag, the pending alarm and the latest passes straight
from the database. Works whether or not the daemon is running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, database, limit, cmd)
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().IntVarP(&limit, "limit", "n", daemon.RecentPassLimit, "number of passes to show")

	return cmd
}

func runStatus(opts *RootOptions, database string, limit int, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if database != "" {
		cfg.Database = database
	}
	loc, err := cfg.Location()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid timezone", err)
	}

	// store.Open would create an empty database.
	if _, err := os.Stat(cfg.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	view := StatusView{Database: cfg.Database}
	if view.Reschedule, err = st.LoadRescheduleState(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to read reschedule state", err)
	}
	alarms, err := st.PendingAlarms(ctx, loc)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read alarms", err)
	}
	if len(alarms) > 0 {
		view.NextAlarm = &alarms[0]
	}
	if view.RecentPasses, err = st.RecentPasses(ctx, limit); err != nil {
		return WrapExitError(ExitFailure, "failed to read passes", err)
	}
	if view.RecentPasses == nil {
		view.RecentPasses = []store.PassRecord{}
	}

	return opts.formatter(cmd).Success(view, func(w io.Writer) {
		writeStatus(w, view, loc)
	})
}

func writeStatus(w io.Writer, view StatusView, loc *time.Location) {
	stamp := func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.In(loc).Format("2006-01-02 15:04:05")
	}

	fmt.Fprintf(w, "Database:          %s\n", view.Database)
	fmt.Fprintf(w, "Needs reschedule:  %t\n", view.Reschedule.NeedsReschedule)
	fmt.Fprintf(w, "Last requested:    %s\n", stamp(view.Reschedule.RequestedAt))
	fmt.Fprintf(w, "Last completed:    %s\n", stamp(view.Reschedule.LastCompletedAt))
	if a := view.NextAlarm; a != nil {
		fmt.Fprintf(w, "Next alarm:        %s at %s (sound %q, slot %d)\n", a.Prayer, stamp(a.At), a.Sound, a.Slot)
	} else {
		fmt.Fprintln(w, "Next alarm:        none")
	}

	if len(view.RecentPasses) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecent passes:")
	for _, p := range view.RecentPasses {
		line := fmt.Sprintf("  %s  %-16s %-22s", stamp(p.StartedAt), p.Trigger, p.Outcome)
		if p.Prayer != "" {
			line += fmt.Sprintf(" %s@%s", p.Prayer, p.TriggerAt.In(loc).Format("01-02 15:04"))
		}
		if p.Error != "" {
			line += "  " + p.Error
		}
		fmt.Fprintln(w, line)
	}
}
