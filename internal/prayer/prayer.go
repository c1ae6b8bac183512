package prayer

import (
	"fmt"
	"strings"
	"time"
)

// Prayer identifies one of the five daily prayers.
type Prayer int

const (
	Fajr Prayer = iota + 1
	Dhuhr
	Asr
	Maghrib
	Isha
)

// All lists the prayers in canonical order.
var All = []Prayer{Fajr, Dhuhr, Asr, Maghrib, Isha}

var prayerNames = map[Prayer]string{
	Fajr:    "Fajr",
	Dhuhr:   "Dhuhr",
	Asr:     "Asr",
	Maghrib: "Maghrib",
	Isha:    "Isha",
}

func (p Prayer) String() string {
	if name, ok := prayerNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Prayer(%d)", int(p))
}

// Key returns the lowercase name used in preference keys and topics.
func (p Prayer) Key() string {
	return strings.ToLower(p.String())
}

// Valid reports whether p is one of the five prayers.
func (p Prayer) Valid() bool {
	_, ok := prayerNames[p]
	return ok
}

// Parse resolves a prayer name case-insensitively. "Zuhr" and "Dhur" are
// accepted as spellings of Dhuhr.
func Parse(name string) (Prayer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fajr":
		return Fajr, nil
	case "dhuhr", "zuhr", "dhur", "duhr":
		return Dhuhr, nil
	case "asr":
		return Asr, nil
	case "maghrib":
		return Maghrib, nil
	case "isha":
		return Isha, nil
	}
	return 0, fmt.Errorf("unknown prayer %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (p Prayer) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid prayer %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Prayer) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Coordinates is a geographic location in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both components are within range.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Entry pairs a prayer with its instant.
type Entry struct {
	Prayer Prayer    `json:"prayer"`
	At     time.Time `json:"at"`
}

// DailyTimes holds the five prayer instants for one calendar date.
//
// Values are produced fresh by a Provider for each scheduling pass and are
// never mutated.
type DailyTimes struct {
	Date    time.Time `json:"date"`
	Fajr    time.Time `json:"fajr"`
	Dhuhr   time.Time `json:"dhuhr"`
	Asr     time.Time `json:"asr"`
	Maghrib time.Time `json:"maghrib"`
	Isha    time.Time `json:"isha"`
}

// At returns the instant of p.
func (d DailyTimes) At(p Prayer) time.Time {
	switch p {
	case Fajr:
		return d.Fajr
	case Dhuhr:
		return d.Dhuhr
	case Asr:
		return d.Asr
	case Maghrib:
		return d.Maghrib
	case Isha:
		return d.Isha
	}
	return time.Time{}
}

// Entries returns the five (prayer, instant) pairs in canonical order.
func (d DailyTimes) Entries() []Entry {
	out := make([]Entry, 0, len(All))
	for _, p := range All {
		out = append(out, Entry{Prayer: p, At: d.At(p)})
	}
	return out
}

// Validate checks that all five instants are set and strictly increasing.
func (d DailyTimes) Validate() error {
	var prev time.Time
	for i, e := range d.Entries() {
		if e.At.IsZero() {
			return fmt.Errorf("%s time is not set", e.Prayer)
		}
		if i > 0 && !e.At.After(prev) {
			return fmt.Errorf("%s (%s) is not after the previous prayer (%s)",
				e.Prayer, e.At.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
		prev = e.At
	}
	return nil
}

// Provider computes the prayer times of one calendar date.
//
// The date argument is interpreted in its own location: the calendar day of
// date in date.Location() is the day computed, and the returned instants are
// expressed in that location.
type Provider interface {
	Times(coords Coordinates, method Method, date time.Time) (DailyTimes, error)
}

// DateOf truncates t to local midnight in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays returns the local midnight n calendar days after date.
func AddDays(date time.Time, n int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, date.Location())
}
