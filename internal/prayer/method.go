package prayer

import "strings"

// Method is a prayer-time calculation convention.
type Method int

const (
	NorthAmerica Method = iota
	MuslimWorldLeague
	Egyptian
	Karachi
	UmmAlQura
	Dubai
	MoonSightingCommittee
	Kuwait
	Qatar
	Singapore
)

// DefaultMethod is used for empty or unrecognized method names.
const DefaultMethod = NorthAmerica

var methodNames = map[Method]string{
	NorthAmerica:          "north_america",
	MuslimWorldLeague:     "muslim_world_league",
	Egyptian:              "egyptian",
	Karachi:               "karachi",
	UmmAlQura:             "umm_al_qura",
	Dubai:                 "dubai",
	MoonSightingCommittee: "moon_sighting_committee",
	Kuwait:                "kuwait",
	Qatar:                 "qatar",
	Singapore:             "singapore",
}

var methodAliases = map[string]Method{
	"muslim_world_league":     MuslimWorldLeague,
	"muslimworldleague":       MuslimWorldLeague,
	"mwl":                     MuslimWorldLeague,
	"egyptian":                Egyptian,
	"karachi":                 Karachi,
	"umm_al_qura":             UmmAlQura,
	"ummalqura":               UmmAlQura,
	"dubai":                   Dubai,
	"moon_sighting_committee": MoonSightingCommittee,
	"moonsightingcommittee":   MoonSightingCommittee,
	"north_america":           NorthAmerica,
	"northamerica":            NorthAmerica,
	"isna":                    NorthAmerica,
	"kuwait":                  Kuwait,
	"qatar":                   Qatar,
	"singapore":               Singapore,
	// No parameters of their own; they share the MWL angles closely enough.
	"tehran": MuslimWorldLeague,
	"turkey": MuslimWorldLeague,
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return methodNames[DefaultMethod]
}

// ParseMethod resolves a method name. It never fails: unknown input resolves
// to DefaultMethod.
func ParseMethod(name string) Method {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if m, ok := methodAliases[key]; ok {
		return m
	}
	return DefaultMethod
}

// HighLatitudeRule bounds Fajr and Isha where twilight never gets deep
// enough to reach the method's angles, as in summer above about 48 degrees.
type HighLatitudeRule int

const (
	// MiddleOfTheNight keeps Fajr and Isha within half the night of
	// sunrise and sunset.
	MiddleOfTheNight HighLatitudeRule = iota
	// SeventhOfTheNight keeps them within a seventh of the night.
	SeventhOfTheNight
	// TwilightAngle keeps them within angle/60 of the night.
	TwilightAngle
)

// nightPortion returns the fraction of the night Fajr or Isha may sit from
// sunrise or sunset for the given depression angle.
func (r HighLatitudeRule) nightPortion(angle float64) float64 {
	switch r {
	case SeventhOfTheNight:
		return 1.0 / 7
	case TwilightAngle:
		return angle / 60
	default:
		return 0.5
	}
}

// Adjustments are fixed minute offsets added to computed times.
type Adjustments struct {
	Fajr, Dhuhr, Asr, Maghrib, Isha float64
}

// Parameters are the solar angles and offsets that define a Method.
//
// MoonSightingCommittee uses flat 18 degree angles; the committee's seasonal
// twilight tables are not modelled.
type Parameters struct {
	FajrAngle float64
	IshaAngle float64
	// IshaMinutes, when non-zero, places Isha a fixed interval after Maghrib
	// instead of using IshaAngle.
	IshaMinutes float64
	// AsrFactor is the shadow-length factor: 1 for the majority, 2 for Hanafi.
	AsrFactor float64
	// HighLatitude defaults to MiddleOfTheNight.
	HighLatitude HighLatitudeRule
	Adjustments  Adjustments
}

// Parameters returns the calculation parameters for m.
func (m Method) Parameters() Parameters {
	switch m {
	case MuslimWorldLeague:
		return Parameters{FajrAngle: 18, IshaAngle: 17, AsrFactor: 1, Adjustments: Adjustments{Dhuhr: 1}}
	case Egyptian:
		return Parameters{FajrAngle: 19.5, IshaAngle: 17.5, AsrFactor: 1, Adjustments: Adjustments{Dhuhr: 1}}
	case Karachi:
		return Parameters{FajrAngle: 18, IshaAngle: 18, AsrFactor: 1, Adjustments: Adjustments{Dhuhr: 1}}
	case UmmAlQura:
		return Parameters{FajrAngle: 18.5, IshaMinutes: 90, AsrFactor: 1}
	case Dubai:
		return Parameters{FajrAngle: 18.2, IshaAngle: 18.2, AsrFactor: 1, Adjustments: Adjustments{Dhuhr: 3, Asr: 3, Maghrib: 3}}
	case MoonSightingCommittee:
		return Parameters{FajrAngle: 18, IshaAngle: 18, AsrFactor: 1, Adjustments: Adjustments{Dhuhr: 5, Maghrib: 3}}
	case Kuwait:
		return Parameters{FajrAngle: 18, IshaAngle: 17.5, AsrFactor: 1}
	case Qatar:
		return Parameters{FajrAngle: 18, IshaMinutes: 90, AsrFactor: 1}
	case Singapore:
		return Parameters{FajrAngle: 20, IshaAngle: 18, AsrFactor: 1, Adjustments: Adjustments{Dhuhr: 1}}
	default:
		return Parameters{FajrAngle: 15, IshaAngle: 15, AsrFactor: 1, Adjustments: Adjustments{Dhuhr: 1}}
	}
}
