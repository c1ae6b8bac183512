package testutil

import (
	"fmt"
	"time"

	"github.com/roach88/muezzin/internal/prayer"
)

// StaticProvider returns the same wall-clock times for every date.
//
// Times are "HH:MM" in the location of the requested date. Calls counts
// Times invocations.
type StaticProvider struct {
	Fajr, Dhuhr, Asr, Maghrib, Isha string

	// Err, when set, is returned by every call.
	Err error

	Calls int
}

// DefaultTimes is a winter-like day whose Isha is at 19:30.
func DefaultTimes() *StaticProvider {
	return &StaticProvider{
		Fajr:    "05:00",
		Dhuhr:   "12:00",
		Asr:     "15:30",
		Maghrib: "18:00",
		Isha:    "19:30",
	}
}

// Times implements prayer.Provider.
func (p *StaticProvider) Times(_ prayer.Coordinates, _ prayer.Method, date time.Time) (prayer.DailyTimes, error) {
	p.Calls++
	if p.Err != nil {
		return prayer.DailyTimes{}, p.Err
	}
	day := prayer.DateOf(date)
	at := func(hhmm string) (time.Time, error) {
		clock, err := time.Parse("15:04", hhmm)
		if err != nil {
			return time.Time{}, fmt.Errorf("static provider: %w", err)
		}
		return day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), nil
	}

	var (
		out prayer.DailyTimes
		err error
	)
	out.Date = day
	if out.Fajr, err = at(p.Fajr); err != nil {
		return prayer.DailyTimes{}, err
	}
	if out.Dhuhr, err = at(p.Dhuhr); err != nil {
		return prayer.DailyTimes{}, err
	}
	if out.Asr, err = at(p.Asr); err != nil {
		return prayer.DailyTimes{}, err
	}
	if out.Maghrib, err = at(p.Maghrib); err != nil {
		return prayer.DailyTimes{}, err
	}
	if out.Isha, err = at(p.Isha); err != nil {
		return prayer.DailyTimes{}, err
	}
	return out, out.Validate()
}
