package schedule

import (
	"context"
	"strconv"
	"time"

	"github.com/roach88/muezzin/internal/prayer"
)

// Slot is the identity under which an alarm is registered with the host.
// Registering under a Slot replaces whatever was pending under it.
type Slot int

// DefaultSlot is the single deterministic slot every reschedule pass uses.
const DefaultSlot Slot = 5000

// Legacy identities that older installs may still hold registrations under.
const (
	legacyRescheduleSlot Slot = 6000
	legacyRangeFirst     Slot = 99
	legacyRangeLast      Slot = 110
)

// KnownSlots lists every identity the engine may have registered, for
// CancelAll.
func KnownSlots() []Slot {
	slots := []Slot{DefaultSlot, legacyRescheduleSlot}
	for s := legacyRangeFirst; s <= legacyRangeLast; s++ {
		slots = append(slots, s)
	}
	return slots
}

func (s Slot) String() string {
	return strconv.Itoa(int(s))
}

// Alarm is one wake-up request.
type Alarm struct {
	Prayer prayer.Prayer `json:"prayer"`
	Sound  string        `json:"sound"`
	At     time.Time     `json:"at"`
	IsIsha bool          `json:"is_isha"`
	Slot   Slot          `json:"slot"`
}

// Facility is the host's exact-timer service.
type Facility interface {
	// RegisterExactWakeup registers alarm under alarm.Slot, atomically
	// replacing any registration already pending under that slot.
	RegisterExactWakeup(ctx context.Context, alarm Alarm) error

	// Cancel removes the registration under slot. Cancelling an empty slot
	// is not an error.
	Cancel(ctx context.Context, slot Slot) error

	// HasExactAlarmCapability reports whether the host permits exact alarms.
	HasExactAlarmCapability(ctx context.Context) bool
}

// SoundPolicy reports whether the adhan sound is enabled for a prayer.
type SoundPolicy interface {
	SoundEnabled(ctx context.Context, p prayer.Prayer) bool
}

// SoundPolicyFunc adapts a function to SoundPolicy.
type SoundPolicyFunc func(ctx context.Context, p prayer.Prayer) bool

// SoundEnabled implements SoundPolicy.
func (f SoundPolicyFunc) SoundEnabled(ctx context.Context, p prayer.Prayer) bool {
	return f(ctx, p)
}
