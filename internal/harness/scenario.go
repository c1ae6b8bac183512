package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/muezzin/internal/engine"
	"github.com/roach88/muezzin/internal/prayer"
	"github.com/roach88/muezzin/internal/testutil"
)

// LocalLayout is the layout of every instant in a scenario file. Instants
// are read in the scenario's timezone.
const LocalLayout = "2006-01-02T15:04"

// Scenario drives the reschedule coordinator through a sequence of clock
// moves and triggers and asserts on the alarms it leaves behind.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Timezone is the IANA zone prayer days are computed in. Default: UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Start is the clock reading before the first step.
	Start string `yaml:"start"`

	// Times are the wall-clock prayer times used for every date. Default:
	// testutil.DefaultTimes.
	Times *Times `yaml:"times,omitempty"`

	// Prefs are stored before the first step. Latitude and longitude are
	// required for anything to be scheduled.
	Prefs map[string]any `yaml:"prefs,omitempty"`

	// Capability sets the initial exact-alarm capability. Default: granted.
	Capability *bool `yaml:"capability,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Times are "HH:MM" prayer times.
type Times struct {
	Fajr    string `yaml:"fajr"`
	Dhuhr   string `yaml:"dhuhr"`
	Asr     string `yaml:"asr"`
	Maghrib string `yaml:"maghrib"`
	Isha    string `yaml:"isha"`
}

// Step is one action of the flow. Fields apply in order: clock move,
// preference writes, capability change, then the trigger.
type Step struct {
	// At moves the clock forward to this instant.
	At string `yaml:"at,omitempty"`

	Prefs      map[string]any `yaml:"prefs,omitempty"`
	Capability *bool          `yaml:"capability,omitempty"`

	// Fire delivers the pending alarm: the clock moves to its instant (or
	// to At, for a late delivery) and an alarm_fired trigger carrying the
	// alarm's prayer and instant runs a pass.
	Fire bool `yaml:"fire,omitempty"`

	// Trigger runs a pass of the given kind.
	Trigger string `yaml:"trigger,omitempty"`
	Prayer  string `yaml:"prayer,omitempty"`
	IsIsha  bool   `yaml:"is_isha,omitempty"`
	FiredAt string `yaml:"fired_at,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks the pass a step ran. Empty fields are not checked.
type Expect struct {
	Outcome string `yaml:"outcome"`
	Prayer  string `yaml:"prayer,omitempty"`
	At      string `yaml:"at,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Prayer and At describe the alarm for pending_alarm.
	Prayer string `yaml:"prayer,omitempty"`
	At     string `yaml:"at,omitempty"`
	IsIsha *bool  `yaml:"is_isha,omitempty"`
	Sound  string `yaml:"sound,omitempty"`

	// Outcome and Count are used by outcome_count.
	Outcome string `yaml:"outcome,omitempty"`
	Count   int    `yaml:"count,omitempty"`

	// Outcomes is the expected order for outcome_order.
	Outcomes []string `yaml:"outcomes,omitempty"`

	// Intent is the kind for intent_emitted.
	Intent string `yaml:"intent,omitempty"`

	// Value is the flag for needs_reschedule.
	Value *bool `yaml:"value,omitempty"`
}

// Assertion types.
const (
	AssertPendingAlarm    = "pending_alarm"
	AssertNoPending       = "no_pending"
	AssertOutcomeCount    = "outcome_count"
	AssertOutcomeOrder    = "outcome_order"
	AssertIntentEmitted   = "intent_emitted"
	AssertNeedsReschedule = "needs_reschedule"
)

var triggerKinds = map[string]engine.TriggerKind{
	string(engine.TriggerAlarmFired):      engine.TriggerAlarmFired,
	string(engine.TriggerBoot):            engine.TriggerBoot,
	string(engine.TriggerTimeChanged):     engine.TriggerTimeChanged,
	string(engine.TriggerTimezoneChanged): engine.TriggerTimezoneChanged,
	string(engine.TriggerManual):          engine.TriggerManual,
	string(engine.TriggerResume):          engine.TriggerResume,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Location resolves the scenario's timezone.
func (s *Scenario) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Provider returns the static prayer-time provider for the scenario.
func (s *Scenario) Provider() *testutil.StaticProvider {
	if s.Times == nil {
		return testutil.DefaultTimes()
	}
	return &testutil.StaticProvider{
		Fajr:    s.Times.Fajr,
		Dhuhr:   s.Times.Dhuhr,
		Asr:     s.Times.Asr,
		Maghrib: s.Times.Maghrib,
		Isha:    s.Times.Isha,
	}
}

func parseInstant(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(LocalLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("instant %q: want %s", value, LocalLayout)
	}
	return t, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	loc, err := s.Location()
	if err != nil {
		return err
	}
	if s.Start == "" {
		return fmt.Errorf("start is required")
	}
	if _, err := parseInstant(s.Start, loc); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if s.Times != nil {
		if _, err := s.Provider().Times(prayer.Coordinates{}, prayer.DefaultMethod, time.Date(2024, 1, 1, 0, 0, 0, 0, loc)); err != nil {
			return fmt.Errorf("times: %w", err)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step, loc); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, loc); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, loc *time.Location) error {
	if step.At != "" {
		if _, err := parseInstant(step.At, loc); err != nil {
			return fmt.Errorf("at: %w", err)
		}
	}
	if step.Fire && step.Trigger != "" {
		return fmt.Errorf("fire and trigger are mutually exclusive")
	}
	if step.Trigger != "" {
		if _, ok := triggerKinds[step.Trigger]; !ok {
			return fmt.Errorf("unknown trigger %q", step.Trigger)
		}
	}
	if step.Prayer != "" {
		if _, err := prayer.Parse(step.Prayer); err != nil {
			return fmt.Errorf("prayer: %w", err)
		}
	}
	if step.FiredAt != "" {
		if _, err := parseInstant(step.FiredAt, loc); err != nil {
			return fmt.Errorf("fired_at: %w", err)
		}
	}
	if step.Expect != nil {
		if !step.Fire && step.Trigger == "" {
			return fmt.Errorf("expect needs a pass to check")
		}
		if step.Expect.Outcome == "" {
			return fmt.Errorf("expect: outcome is required")
		}
		if step.Expect.At != "" {
			if _, err := parseInstant(step.Expect.At, loc); err != nil {
				return fmt.Errorf("expect.at: %w", err)
			}
		}
	}
	return nil
}

func validateAssertion(a Assertion, loc *time.Location) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertPendingAlarm:
		if a.Prayer == "" {
			return fmt.Errorf("prayer is required for pending_alarm")
		}
		if _, err := prayer.Parse(a.Prayer); err != nil {
			return err
		}
		if a.At != "" {
			if _, err := parseInstant(a.At, loc); err != nil {
				return fmt.Errorf("at: %w", err)
			}
		}
	case AssertNoPending:
	case AssertOutcomeCount:
		if a.Outcome == "" {
			return fmt.Errorf("outcome is required for outcome_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for outcome_count")
		}
	case AssertOutcomeOrder:
		if len(a.Outcomes) == 0 {
			return fmt.Errorf("outcomes list is required for outcome_order")
		}
	case AssertIntentEmitted:
		if a.Intent == "" {
			return fmt.Errorf("intent is required for intent_emitted")
		}
	case AssertNeedsReschedule:
		if a.Value == nil {
			return fmt.Errorf("value is required for needs_reschedule")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
