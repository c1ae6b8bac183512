package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/muezzin/internal/config"
	"github.com/roach88/muezzin/internal/prefs"
	"github.com/roach88/muezzin/internal/store"
)

// prefStore is a preference backend the CLI can read and write.
type prefStore interface {
	prefs.Source
	prefs.Writer
	prefs.Lister
}

// PrefView is one stored preference and its numeric reading, if any.
type PrefView struct {
	Key    string   `json:"key"`
	Raw    any      `json:"raw"`
	Kind   string   `json:"kind"`
	Number *float64 `json:"number,omitempty"`
}

// openPreferences opens the configured preference backend.
func openPreferences(ctx context.Context, cfg config.Config) (prefStore, func() error, error) {
	if cfg.Preferences.Backend == config.BackendRedis {
		rc := cfg.Preferences.Redis
		src, client, err := prefs.NewRedisSource(ctx, prefs.RedisOptions{Addr: rc.Addr, Password: rc.Password, DB: rc.DB, Key: rc.Key})
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open preferences", err)
		}
		return src, client.Close, nil
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, st.Close, nil
}

// NewPrefsCommand creates the prefs command group.
func NewPrefsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Read and write stored preferences",
		Long: `Read and write the untyped preference store the daemon reads on every pass.

Keys are looked up bare first and then with the legacy prefix, so
"latitude" also finds "flutter.latitude".`,
	}

	cmd.AddCommand(newPrefsGetCommand(rootOpts))
	cmd.AddCommand(newPrefsSetCommand(rootOpts))
	cmd.AddCommand(newPrefsListCommand(rootOpts))

	return cmd
}

func newPrefsGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one preference and how it decodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrefs(rootOpts, cmd, func(cfg config.Config, st prefStore) error {
				keys := []string{args[0]}
				if cfg.LegacyPrefix != "" && !strings.HasPrefix(args[0], cfg.LegacyPrefix) {
					keys = append(keys, cfg.LegacyPrefix+args[0])
				}
				for _, key := range keys {
					raw, ok, err := st.Lookup(cmd.Context(), key)
					if err != nil {
						return WrapExitError(ExitFailure, "failed to read preference", err)
					}
					if !ok {
						continue
					}
					view := describe(key, raw)
					return rootOpts.formatter(cmd).Success(view, func(w io.Writer) {
						writePref(w, view)
					})
				}
				return NewExitError(ExitFailure, fmt.Sprintf("preference %q is not set", args[0]))
			})
		},
	}
}

func newPrefsSetCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		bits bool
		kind string
	)

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a preference",
		Long: `Store a preference.

By default the value is stored as a boolean, an integer, a number or a
string, whichever parses first. --type forces one. --bits stores a number as
the integer holding its IEEE-754 bit pattern, which is how older front-ends
wrote coordinates.

Examples:
  muezzin prefs set latitude 21.4225
  muezzin prefs set longitude 39.8262 --bits
  muezzin prefs set maghrib_sound_enabled false
  muezzin prefs set selected_adhan 1 --type string`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parsePrefValue(args[1], kind, bits)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid value", err)
			}
			return withPrefs(rootOpts, cmd, func(cfg config.Config, st prefStore) error {
				if err := st.Set(cmd.Context(), args[0], value); err != nil {
					return WrapExitError(ExitFailure, "failed to store preference", err)
				}
				view := describe(args[0], value)
				return rootOpts.formatter(cmd).Success(view, func(w io.Writer) {
					writePref(w, view)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&bits, "bits", false, "store a number as its IEEE-754 bit pattern")
	cmd.Flags().StringVar(&kind, "type", "auto", "value type (auto|bool|int|number|string)")

	return cmd
}

func newPrefsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every stored preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrefs(rootOpts, cmd, func(cfg config.Config, st prefStore) error {
				all, err := st.All(cmd.Context())
				if err != nil {
					return WrapExitError(ExitFailure, "failed to list preferences", err)
				}
				keys := make([]string, 0, len(all))
				for k := range all {
					keys = append(keys, k)
				}
				sort.Strings(keys)

				views := make([]PrefView, 0, len(keys))
				for _, k := range keys {
					views = append(views, describe(k, all[k]))
				}
				return rootOpts.formatter(cmd).Success(views, func(w io.Writer) {
					if len(views) == 0 {
						fmt.Fprintln(w, "No preferences stored.")
						return
					}
					for _, v := range views {
						writePref(w, v)
					}
				})
			})
		},
	}
}

func withPrefs(opts *RootOptions, cmd *cobra.Command, fn func(config.Config, prefStore) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	st, closeFn, err := openPreferences(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(cfg, st)
}

// describe classifies raw the way the daemon would.
func describe(key string, raw any) PrefView {
	v := prefs.FromRaw(raw)
	view := PrefView{Key: key, Raw: raw, Kind: v.Kind().String()}
	if f, ok := v.Number(); ok {
		view.Number = &f
	}
	return view
}

func writePref(w io.Writer, v PrefView) {
	fmt.Fprintf(w, "%-28s %-6s %v", v.Key, v.Kind, v.Raw)
	if v.Number != nil && fmt.Sprint(*v.Number) != fmt.Sprint(v.Raw) {
		fmt.Fprintf(w, "  (reads as %v)", *v.Number)
	}
	fmt.Fprintln(w)
}

// parsePrefValue converts command-line text to the raw value to store.
func parsePrefValue(text, kind string, bits bool) (any, error) {
	if bits {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("--bits needs a number: %w", err)
		}
		return int64(math.Float64bits(f)), nil
	}

	switch strings.ToLower(kind) {
	case "string":
		return text, nil
	case "bool":
		return strconv.ParseBool(text)
	case "int":
		return strconv.ParseInt(text, 10, 64)
	case "number":
		return strconv.ParseFloat(text, 64)
	case "auto", "":
		if b, err := strconv.ParseBool(text); err == nil && !isBinaryDigit(text) {
			return b, nil
		}
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f, nil
		}
		return text, nil
	default:
		return nil, fmt.Errorf("unknown type %q", kind)
	}
}

// isBinaryDigit keeps "0" and "1" numeric under auto typing.
func isBinaryDigit(s string) bool {
	return s == "0" || s == "1"
}
