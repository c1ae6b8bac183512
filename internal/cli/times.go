package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/muezzin/internal/config"
	"github.com/roach88/muezzin/internal/fault"
	"github.com/roach88/muezzin/internal/prayer"
	"github.com/roach88/muezzin/internal/prefs"
	"github.com/roach88/muezzin/internal/schedule"
)

const dateLayout = time.DateOnly

// TimesEntry is one prayer of a TimesView.
type TimesEntry struct {
	Prayer       string    `json:"prayer"`
	At           time.Time `json:"at"`
	SoundEnabled bool      `json:"sound_enabled"`
}

// TimesView is the output of the times command.
type TimesView struct {
	Date      string       `json:"date"`
	Method    string       `json:"method"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Times     []TimesEntry `json:"times"`
}

// NextView is the output of the next command.
type NextView struct {
	Prayer string        `json:"prayer"`
	At     time.Time     `json:"at"`
	In     time.Duration `json:"in"`
	Sound  string        `json:"sound"`
	IsIsha bool          `json:"is_isha"`
}

// NewTimesCommand creates the times command.
func NewTimesCommand(rootOpts *RootOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "times",
		Short: "Print the prayer times of a day",
		Long: `Compute the five prayer times from the stored location and calculation
method.

Examples:
  muezzin times
  muezzin times --date 2024-03-10 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimes(rootOpts, date, cmd)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")

	return cmd
}

// NewNextCommand creates the next command.
func NewNextCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Print the next prayer that will sound",
		Long: `Select the next prayer after now whose adhan is enabled, the same way
the daemon does when it reschedules.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNext(rootOpts, at, cmd)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "reference instant as YYYY-MM-DDTHH:MM (default now)")

	return cmd
}

func runTimes(opts *RootOptions, date string, cmd *cobra.Command) error {
	cfg, loc, settings, err := loadSettings(opts, cmd)
	if err != nil {
		return err
	}

	day := time.Now().In(loc)
	if date != "" {
		day, err = time.ParseInLocation(dateLayout, date, loc)
		if err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid date %q: want YYYY-MM-DD", date))
		}
	}
	times, err := prayer.Calculator{}.Times(settings.Location, settings.Method, day)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to compute prayer times", err)
	}

	view := TimesView{
		Date:      times.Date.Format(dateLayout),
		Method:    settings.Method.String(),
		Latitude:  settings.Location.Latitude,
		Longitude: settings.Location.Longitude,
	}
	for _, e := range times.Entries() {
		view.Times = append(view.Times, TimesEntry{Prayer: e.Prayer.String(), At: e.At, SoundEnabled: settings.IsSoundEnabled(e.Prayer)})
	}
	opts.formatter(cmd).VerboseLog("computed times for %s (%s, backend %s)", view.Date, view.Method, cfg.Preferences.Backend)

	return opts.formatter(cmd).Success(view, func(w io.Writer) {
		fmt.Fprintf(w, "%s  (%s, %.4f, %.4f)\n", view.Date, view.Method, view.Latitude, view.Longitude)
		for _, e := range view.Times {
			mark := ""
			if !e.SoundEnabled {
				mark = "  (silent)"
			}
			fmt.Fprintf(w, "  %-8s %s%s\n", e.Prayer, e.At.Format("15:04"), mark)
		}
	})
}

func runNext(opts *RootOptions, at string, cmd *cobra.Command) error {
	cfg, loc, settings, err := loadSettings(opts, cmd)
	if err != nil {
		return err
	}

	now := time.Now().In(loc)
	if at != "" {
		now, err = time.ParseInLocation("2006-01-02T15:04", at, loc)
		if err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid instant %q: want YYYY-MM-DDTHH:MM", at))
		}
	}

	sel, ok, err := nextEnabled(settings, now, cfg.LookaheadDays)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to compute prayer times", err)
	}
	if !ok {
		return opts.formatter(cmd).Success(nil, func(w io.Writer) {
			fmt.Fprintf(w, "Every prayer in the next %d days is silenced.\n", cfg.LookaheadDays)
		})
	}

	view := NextView{Prayer: sel.Prayer.String(), At: sel.At, In: sel.At.Sub(now), IsIsha: sel.IsIsha, Sound: settings.SelectedAdhan}
	if sel.Prayer == prayer.Fajr {
		view.Sound = cfg.FajrSound
	}
	return opts.formatter(cmd).Success(view, func(w io.Writer) {
		fmt.Fprintf(w, "%s at %s (in %s), sound %q\n",
			view.Prayer, view.At.Format("2006-01-02 15:04"), view.In.Round(time.Minute), view.Sound)
	})
}

// nextEnabled returns the first prayer strictly after now whose sound is
// enabled, looking at most lookahead days past today.
func nextEnabled(settings prefs.Settings, now time.Time, lookahead int) (schedule.Selection, bool, error) {
	calc := prayer.Calculator{}
	horizon := prayer.AddDays(prayer.DateOf(now), lookahead)
	ref := now
	for {
		date := prayer.DateOf(ref)
		today, err := calc.Times(settings.Location, settings.Method, date)
		if err != nil {
			return schedule.Selection{}, false, err
		}
		tomorrow, err := calc.Times(settings.Location, settings.Method, prayer.AddDays(date, 1))
		if err != nil {
			return schedule.Selection{}, false, err
		}
		sel := schedule.SelectNext(ref, today, tomorrow.Fajr)
		if prayer.DateOf(sel.At).After(horizon) {
			return schedule.Selection{}, false, nil
		}
		if settings.IsSoundEnabled(sel.Prayer) {
			return sel, true, nil
		}
		ref = sel.At
	}
}

// loadSettings reads the typed preferences from the configured backend and
// fails unless a location is stored.
func loadSettings(opts *RootOptions, cmd *cobra.Command) (config.Config, *time.Location, prefs.Settings, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return config.Config{}, nil, prefs.Settings{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return config.Config{}, nil, prefs.Settings{}, WrapExitError(ExitCommandError, "invalid timezone", err)
	}

	src, closeFn, err := openPreferences(cmd.Context(), cfg)
	if err != nil {
		return config.Config{}, nil, prefs.Settings{}, err
	}
	defer closeFn()

	settings := prefs.NewReader(src, cfg.LegacyPrefix).Load(cmd.Context())
	if !settings.HasLocation {
		return config.Config{}, nil, prefs.Settings{}, WrapExitError(ExitCommandError, "cannot compute prayer times",
			fault.New(fault.ConfigurationMissing, "times", "no location configured; set latitude and longitude with muezzin prefs set"))
	}
	return cfg, loc, settings, nil
}
