package schedule

import (
	"time"

	"github.com/roach88/muezzin/internal/prayer"
)

// Selection is the prayer chosen to alarm for.
type Selection struct {
	Prayer prayer.Prayer
	At     time.Time
	// IsIsha is set only when today's Isha was selected: its firing is the
	// one that must chain into the following day.
	IsIsha bool
	// Tomorrow is set when every prayer of today had passed.
	Tomorrow bool
}

// SelectNext returns the first of today's prayers whose instant is strictly
// after now. A prayer whose instant equals now has already begun and is
// treated as passed. When all five have passed it returns tomorrow's Fajr.
func SelectNext(now time.Time, today prayer.DailyTimes, tomorrowFajr time.Time) Selection {
	for _, e := range today.Entries() {
		if e.At.After(now) {
			return Selection{
				Prayer: e.Prayer,
				At:     e.At,
				IsIsha: e.Prayer == prayer.Isha,
			}
		}
	}
	return Selection{Prayer: prayer.Fajr, At: tomorrowFajr, Tomorrow: true}
}
