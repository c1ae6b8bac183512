package prayer

import (
	"fmt"
	"math"
	"time"
)

// Calculator computes prayer times astronomically from the sun's position.
//
// The algorithm is the widely used solar-angle method: Fajr and Isha are the
// instants the sun reaches the method's depression angle, Dhuhr is solar
// noon, Asr is when an object's shadow reaches AsrFactor times its length
// plus its noon shadow, and Maghrib is sunset (0.833 degrees below the
// horizon to account for refraction and the solar disc).
//
// Calculator is stateless and safe for concurrent use.
type Calculator struct{}

// sunsetAngle includes atmospheric refraction and the sun's apparent radius.
const sunsetAngle = 0.833

// refinements is how many times the estimates are fed back into the
// solar-position computation.
const refinements = 2

// Times implements Provider.
func (c Calculator) Times(coords Coordinates, method Method, date time.Time) (DailyTimes, error) {
	return c.TimesWith(coords, method.Parameters(), date)
}

// TimesWith computes the times of date with explicit parameters.
func (Calculator) TimesWith(coords Coordinates, params Parameters, date time.Time) (DailyTimes, error) {
	if !coords.Valid() {
		return DailyTimes{}, fmt.Errorf("coordinates out of range: (%f, %f)", coords.Latitude, coords.Longitude)
	}

	loc := date.Location()
	y, mo, d := date.Date()

	s := solar{
		jd:  julianDate(y, int(mo), d) - coords.Longitude/(15*24),
		lat: coords.Latitude,
	}

	// Initial estimates are in local mean hours.
	sunrise, riseOK := refine(6, func(t float64) float64 { return s.sunAngleTime(sunsetAngle, t, true) })
	sunset, setOK := refine(18, func(t float64) float64 { return s.sunAngleTime(sunsetAngle, t, false) })
	dhuhr, noonOK := refine(12, s.midDay)
	asr, asrOK := refine(13, func(t float64) float64 { return s.asrTime(params.AsrFactor, t) })
	if !riseOK || !setOK || !noonOK || !asrOK {
		return DailyTimes{}, fmt.Errorf("prayer times undefined at latitude %.4f on %s: the sun does not rise or set", coords.Latitude, date.Format("2006-01-02"))
	}

	night := 24 - (sunset - sunrise)

	fajr, ok := refine(5, func(t float64) float64 { return s.sunAngleTime(params.FajrAngle, t, true) })
	if safe := sunrise - params.HighLatitude.nightPortion(params.FajrAngle)*night; !ok || fajr < safe {
		fajr = safe
	}

	var isha float64
	if params.IshaMinutes != 0 {
		isha = sunset + params.IshaMinutes/60
	} else {
		isha, ok = refine(18, func(t float64) float64 { return s.sunAngleTime(params.IshaAngle, t, false) })
		if safe := sunset + params.HighLatitude.nightPortion(params.IshaAngle)*night; !ok || isha > safe {
			isha = safe
		}
	}

	base := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	offset := coords.Longitude / 15
	instant := func(h, minutes float64) time.Time {
		h += minutes / 60
		return base.Add(time.Duration((h - offset) * float64(time.Hour))).Round(time.Minute).In(loc)
	}

	adj := params.Adjustments
	out := DailyTimes{
		Date:    time.Date(y, mo, d, 0, 0, 0, 0, loc),
		Fajr:    instant(fajr, adj.Fajr),
		Dhuhr:   instant(dhuhr, adj.Dhuhr),
		Asr:     instant(asr, adj.Asr),
		Maghrib: instant(sunset, adj.Maghrib),
		Isha:    instant(isha, adj.Isha),
	}
	if err := out.Validate(); err != nil {
		return DailyTimes{}, fmt.Errorf("computed times for %s: %w", date.Format("2006-01-02"), err)
	}
	return out, nil
}

// refine feeds an estimate in local mean hours back through f, which takes a
// fraction of the day. ok is false when the event does not happen that day.
func refine(estimate float64, f func(t float64) float64) (h float64, ok bool) {
	for i := 0; i < refinements; i++ {
		next := f(estimate / 24)
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return 0, false
		}
		estimate = next
	}
	return estimate, true
}

type solar struct {
	jd  float64
	lat float64
}

// position returns the sun's declination and the equation of time at the
// given fraction of the day.
func (s solar) position(t float64) (decl, eqt float64) {
	days := s.jd + t - 2451545.0
	g := fixAngle(357.529 + 0.98560028*days)
	q := fixAngle(280.459 + 0.98564736*days)
	l := fixAngle(q + 1.915*dsin(g) + 0.020*dsin(2*g))
	e := 23.439 - 0.00000036*days

	ra := darctan2(dcos(e)*dsin(l), dcos(l)) / 15
	eqt = q/15 - fixHour(ra)
	decl = darcsin(dsin(e) * dsin(l))
	return decl, eqt
}

func (s solar) midDay(t float64) float64 {
	_, eqt := s.position(t)
	return fixHour(12 - eqt)
}

// sunAngleTime returns the time the sun is angle degrees below the horizon,
// before noon when ccw is set and after noon otherwise.
func (s solar) sunAngleTime(angle, t float64, ccw bool) float64 {
	decl, _ := s.position(t)
	noon := s.midDay(t)
	x := (-dsin(angle) - dsin(decl)*dsin(s.lat)) / (dcos(decl) * dcos(s.lat))
	span := darccos(x) / 15
	if ccw {
		return noon - span
	}
	return noon + span
}

func (s solar) asrTime(factor, t float64) float64 {
	decl, _ := s.position(t)
	angle := -darccot(factor + dtan(math.Abs(s.lat-decl)))
	return s.sunAngleTime(angle, t, false)
}

func julianDate(year, month, day int) float64 {
	if month <= 2 {
		year--
		month += 12
	}
	a := math.Floor(float64(year) / 100)
	b := 2 - a + math.Floor(a/4)
	return math.Floor(365.25*float64(year+4716)) + math.Floor(30.6001*float64(month+1)) + float64(day) + b - 1524.5
}

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }

func dsin(d float64) float64        { return math.Sin(rad(d)) }
func dcos(d float64) float64        { return math.Cos(rad(d)) }
func dtan(d float64) float64        { return math.Tan(rad(d)) }
func darcsin(x float64) float64     { return deg(math.Asin(x)) }
func darccos(x float64) float64     { return deg(math.Acos(x)) }
func darccot(x float64) float64     { return deg(math.Atan(1 / x)) }
func darctan2(y, x float64) float64 { return deg(math.Atan2(y, x)) }
func fixAngle(a float64) float64    { return a - 360*math.Floor(a/360) }
func fixHour(a float64) float64     { return a - 24*math.Floor(a/24) }
