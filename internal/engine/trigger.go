package engine

import (
	"time"

	"github.com/roach88/muezzin/internal/prayer"
)

// TriggerKind names what asked for a reschedule pass.
type TriggerKind string

const (
	TriggerAlarmFired      TriggerKind = "alarm_fired"
	TriggerBoot            TriggerKind = "boot"
	TriggerTimeChanged     TriggerKind = "time_changed"
	TriggerTimezoneChanged TriggerKind = "timezone_changed"
	TriggerManual          TriggerKind = "manual"
	TriggerResume          TriggerKind = "resume"
)

// Trigger is one request for a reschedule pass.
type Trigger struct {
	Kind TriggerKind `json:"kind" yaml:"kind"`

	// Prayer and FiredAt describe the alarm that fired, if any. FiredAt is
	// the instant the alarm was registered for, not the time the callback
	// ran, so a late delivery still anchors to the right day.
	Prayer  prayer.Prayer `json:"prayer,omitempty" yaml:"prayer,omitempty"`
	FiredAt time.Time     `json:"fired_at,omitempty" yaml:"fired_at,omitempty"`

	// IsIsha marks the last alarm of the day: the pass must chain into the
	// following day.
	IsIsha bool `json:"is_isha,omitempty" yaml:"is_isha,omitempty"`
}

// hasAlarm reports whether the trigger carries fired-alarm context.
func (t Trigger) hasAlarm() bool {
	return t.Prayer.Valid() || t.IsIsha
}

// merge coalesces next into t. The latest fired alarm wins together with its
// IsIsha flag; a later trigger without alarm context keeps the earlier alarm.
func (t Trigger) merge(next Trigger) Trigger {
	if next.hasAlarm() || !t.hasAlarm() {
		return next
	}
	return t
}
