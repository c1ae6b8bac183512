package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/muezzin/internal/control"
)

const remoteTimeout = 10 * time.Second

// RemoteResult is the output of a remote command.
type RemoteResult struct {
	Action control.Action `json:"action"`
	OK     bool           `json:"ok"`
}

// remoteError is the error body of the control API.
type remoteError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func (e *remoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (HTTP %d, %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// apiClient posts commands to a running daemon.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(addr string) *apiClient {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &apiClient{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: remoteTimeout},
	}
}

func (c *apiClient) post(ctx context.Context, path string, query url.Values, body any) (RemoteResult, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return RemoteResult{}, err
		}
		reader = bytes.NewReader(data)
	}

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, reader)
	if err != nil {
		return RemoteResult{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return RemoteResult{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return RemoteResult{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rerr := &remoteError{Status: resp.StatusCode}
		if json.Unmarshal(data, rerr) != nil || rerr.Message == "" {
			rerr.Message = strings.TrimSpace(string(data))
		}
		return RemoteResult{}, rerr
	}

	var out RemoteResult
	if err := json.Unmarshal(data, &out); err != nil {
		return RemoteResult{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// remoteFlags are shared by every remote command.
type remoteFlags struct {
	api string
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.api, "api", "", "control API address (default from config api.listen)")
}

func (f *remoteFlags) client(opts *RootOptions) (*apiClient, error) {
	if f.api != "" {
		return newAPIClient(f.api), nil
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	return newAPIClient(cfg.API.Listen), nil
}

// NewRemoteCommands creates the commands that drive a running daemon over
// its control API.
func NewRemoteCommands(rootOpts *RootOptions) []*cobra.Command {
	return []*cobra.Command{
		newSimpleRemoteCommand(rootOpts, "reschedule", "Ask the daemon to run a reschedule pass", "/reschedule"),
		newPlayCommand(rootOpts),
		newSimpleRemoteCommand(rootOpts, "pause", "Pause the adhan that is playing", "/playback/pause"),
		newSimpleRemoteCommand(rootOpts, "resume", "Resume a paused adhan", "/playback/resume"),
		newSimpleRemoteCommand(rootOpts, "stop", "Stop playback and release the output device", "/playback/stop"),
		newInterruptCommand(rootOpts),
		newSimpleRemoteCommand(rootOpts, "restore", "Hand the output device back after an interrupt", "/focus/restore"),
	}
}

func newSimpleRemoteCommand(rootOpts *RootOptions, use, short, path string) *cobra.Command {
	var flags remoteFlags

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendRemote(rootOpts, &flags, cmd, path, nil, nil)
		},
	}
	flags.register(cmd)

	return cmd
}

func newPlayCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags  remoteFlags
		body   control.Command
		volume float64
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Start an adhan now",
		Long: `Start an adhan on the running daemon.

Without flags the selected adhan plays as for Dhuhr.

Examples:
  muezzin play
  muezzin play --prayer fajr
  muezzin play --sound "Mishary Rashid Alafasy" --volume 0.5
  muezzin play --file /srv/adhan/custom.mp3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body.Action = control.ActionPlay
			if cmd.Flags().Changed("volume") {
				body.Volume = &volume
			}
			return sendRemote(rootOpts, &flags, cmd, "/playback/play", nil, body)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&body.Prayer, "prayer", "", "prayer whose adhan to play (fajr selects the fajr sound)")
	cmd.Flags().StringVar(&body.Sound, "sound", "", "adhan name to play")
	cmd.Flags().StringVar(&body.SoundFile, "file", "", "audio file on the daemon host to play")
	cmd.Flags().Float64Var(&volume, "volume", 1, "stream volume between 0 and 1")

	return cmd
}

func newInterruptCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags     remoteFlags
		permanent bool
	)

	cmd := &cobra.Command{
		Use:   "interrupt",
		Short: "Take the output device away from the adhan",
		Long: `Act as another application taking the output device.

A transient interrupt pauses the adhan until "muezzin restore"; a permanent
one stops it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var query url.Values
			if permanent {
				query = url.Values{"permanent": []string{"true"}}
			}
			return sendRemote(rootOpts, &flags, cmd, "/focus/interrupt", query, nil)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&permanent, "permanent", false, "stop instead of pausing")

	return cmd
}

func sendRemote(opts *RootOptions, flags *remoteFlags, cmd *cobra.Command, path string, query url.Values, body any) error {
	client, err := flags.client(opts)
	if err != nil {
		return err
	}
	opts.formatter(cmd).VerboseLog("POST %s%s", client.base, path)

	res, err := client.post(cmd.Context(), path, query, body)
	if err != nil {
		return WrapExitError(ExitFailure, "request failed", err)
	}
	return opts.formatter(cmd).Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "%s: ok\n", res.Action)
	})
}
