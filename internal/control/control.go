package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/muezzin/internal/playback"
	"github.com/roach88/muezzin/internal/prayer"
	"github.com/roach88/muezzin/internal/store"
)

// Action is a remote command verb.
type Action string

const (
	ActionPlay       Action = "play"
	ActionPause      Action = "pause"
	ActionResume     Action = "resume"
	ActionStop       Action = "stop"
	ActionReschedule Action = "reschedule"

	// ActionInterrupt and ActionRestore act as a third-party focus holder:
	// interrupt takes the output device away (transiently unless Permanent),
	// restore hands it back.
	ActionInterrupt Action = "interrupt"
	ActionRestore   Action = "restore"
)

// Actions lists every accepted action.
func Actions() []Action {
	return []Action{ActionPlay, ActionPause, ActionResume, ActionStop, ActionReschedule, ActionInterrupt, ActionRestore}
}

// ErrInvalidCommand wraps every validation failure.
var ErrInvalidCommand = errors.New("invalid command")

// Command is one remote request, as received over HTTP or MQTT.
type Command struct {
	Action    Action   `json:"action"`
	Prayer    string   `json:"prayer,omitempty"`
	Sound     string   `json:"sound,omitempty"`
	SoundFile string   `json:"sound_file,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
	Permanent bool     `json:"permanent,omitempty"`
}

// Validate checks the action and, for play, its arguments.
func (c Command) Validate() error {
	switch c.Action {
	case ActionPause, ActionResume, ActionStop, ActionReschedule, ActionInterrupt, ActionRestore:
		return nil
	case ActionPlay:
		if c.Prayer != "" {
			if _, err := prayer.Parse(c.Prayer); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
			}
		}
		if c.Volume != nil && (*c.Volume < 0 || *c.Volume > 1) {
			return fmt.Errorf("%w: volume %v out of range [0,1]", ErrInvalidCommand, *c.Volume)
		}
		return nil
	case "":
		return fmt.Errorf("%w: missing action", ErrInvalidCommand)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, c.Action)
	}
}

// PlayRequest converts a validated play command.
func (c Command) PlayRequest() playback.Request {
	req := playback.Request{Sound: c.Sound, SoundFile: c.SoundFile, Volume: c.Volume}
	if p, err := prayer.Parse(c.Prayer); err == nil {
		req.Prayer = p
	}
	return req
}

// ParseCommand decodes and validates a JSON command.
func ParseCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if err := c.Validate(); err != nil {
		return Command{}, err
	}
	return c, nil
}

// Snapshot is the daemon state exposed to remote clients.
type Snapshot struct {
	Now          time.Time             `json:"now"`
	Playback     playback.Status       `json:"playback"`
	Reschedule   store.RescheduleState `json:"reschedule"`
	NextAlarm    *store.AlarmRecord    `json:"next_alarm,omitempty"`
	RecentPasses []store.PassRecord    `json:"recent_passes,omitempty"`
}

// Controller is what the remote surfaces drive.
type Controller interface {
	Dispatch(ctx context.Context, cmd Command) error
	Snapshot(ctx context.Context) (Snapshot, error)
	Times(ctx context.Context, date time.Time) (prayer.DailyTimes, error)
}
