package harness

import (
	"fmt"
	"time"

	"github.com/roach88/muezzin/internal/engine"
	"github.com/roach88/muezzin/internal/schedule"
	"github.com/roach88/muezzin/internal/store"
)

// CheckInvariants verifies what must hold after every pass, whatever the
// scenario asserts:
//   - at most one alarm is pending, and only under schedule.DefaultSlot
//   - a scheduled pass leaves its alarm pending, strictly after now
//   - the persisted flag is clear exactly when the outcome completed
//   - disabling notifications leaves nothing pending
func CheckInvariants(res engine.PassResult, pending []schedule.Alarm, state store.RescheduleState, now time.Time) []string {
	var errs []string

	if len(pending) > 1 {
		errs = append(errs, fmt.Sprintf("%d alarms pending, want at most one", len(pending)))
	}
	for _, a := range pending {
		if a.Slot != schedule.DefaultSlot {
			errs = append(errs, fmt.Sprintf("alarm pending under slot %d", a.Slot))
		}
	}

	switch res.Outcome {
	case engine.PassScheduled:
		if res.Alarm == nil {
			errs = append(errs, "scheduled pass carries no alarm")
			break
		}
		if !res.Alarm.At.After(now) {
			errs = append(errs, fmt.Sprintf("scheduled alarm at %s is not after %s", res.Alarm.At, now))
		}
		if len(pending) != 1 || !pending[0].At.Equal(res.Alarm.At) || pending[0].Prayer != res.Alarm.Prayer {
			errs = append(errs, "scheduled alarm is not the pending one")
		}
	case engine.PassNotificationsDisabled:
		if len(pending) > 0 {
			errs = append(errs, "alarms still pending with notifications disabled")
		}
	}

	if res.Outcome.Completed() == state.NeedsReschedule {
		errs = append(errs, fmt.Sprintf("needs_reschedule = %t after %s pass", state.NeedsReschedule, res.Outcome))
	}
	return errs
}
