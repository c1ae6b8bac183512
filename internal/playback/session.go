package playback

import (
	"time"

	"github.com/roach88/muezzin/internal/prayer"
)

// State is the lifecycle state of the playback device.
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// StopReason records why a session reached Stopped.
type StopReason string

const (
	StopRequested           StopReason = "requested"
	StopCompleted           StopReason = "completed"
	StopError               StopReason = "error"
	StopFocusLoss           StopReason = "focus_loss"
	StopSuperseded          StopReason = "superseded"
	StopResourceUnavailable StopReason = "resource_unavailable"
)

// Request asks for an adhan to be played.
type Request struct {
	Prayer prayer.Prayer `json:"prayer,omitempty"`
	// SoundFile is a local path preferred over Sound when it exists.
	SoundFile string `json:"sound_file,omitempty"`
	// Sound is a logical sound name, resolved in the sounds directory.
	Sound string `json:"sound,omitempty"`
	// Volume is the content volume, 0..1. Nil uses the configured volume.
	Volume *float64 `json:"volume,omitempty"`
}

// Status is a snapshot of the manager.
type Status struct {
	State             State         `json:"state"`
	SessionID         string        `json:"session_id,omitempty"`
	Prayer            prayer.Prayer `json:"prayer,omitempty"`
	Source            string        `json:"source,omitempty"`
	Volume            float64       `json:"volume,omitempty"`
	SavedDeviceVolume *float64      `json:"saved_device_volume,omitempty"`
	PausedByFocus     bool          `json:"paused_by_focus,omitempty"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	LastStop          StopReason    `json:"last_stop,omitempty"`
}

// session is the one active playback. All fields are guarded by Manager.mu.
type session struct {
	id              string
	state           State
	prayer          prayer.Prayer
	source          Source
	requestedVolume float64
	savedVolume     *float64
	pausedByFocus   bool
	startedAt       time.Time

	stream    Stream
	wakeHeld  bool
	focusHeld bool
}

func (s *session) status() Status {
	st := Status{
		State:         s.state,
		SessionID:     s.id,
		Prayer:        s.prayer,
		Source:        s.source.Path,
		Volume:        s.requestedVolume,
		PausedByFocus: s.pausedByFocus,
	}
	if s.savedVolume != nil {
		v := *s.savedVolume
		st.SavedDeviceVolume = &v
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		st.StartedAt = &t
	}
	return st
}
