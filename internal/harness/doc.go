// Package harness runs YAML scenarios against the reschedule coordinator.
//
// A scenario wires a real engine.Coordinator and schedule.Scheduler to an
// in-memory store, a fake clock and a fake alarm facility, then moves the
// clock and fires triggers step by step. Every pass is recorded in a trace
// that can be compared against a golden file.
//
// # Scenario Format
//
//	name: isha_chains_to_fajr
//	description: "Isha firing schedules the next day's Fajr"
//	timezone: UTC
//	start: "2024-01-15T19:00"
//	times: {fajr: "05:00", dhuhr: "12:00", asr: "15:30", maghrib: "18:00", isha: "19:30"}
//	prefs:
//	  latitude: 21.42
//	  longitude: 39.83
//	steps:
//	  - trigger: boot
//	    expect: {outcome: scheduled, prayer: isha, at: "2024-01-15T19:30"}
//	  - fire: true
//	    expect: {outcome: scheduled, prayer: fajr, at: "2024-01-16T05:00"}
//	assertions:
//	  - type: pending_alarm
//	    prayer: fajr
//	    at: "2024-01-16T05:00"
//
// Instants use the layout "2006-01-02T15:04" in the scenario's timezone.
// A step applies, in order: the clock move (at), preference writes (prefs),
// the capability change (capability), then the pass (fire or trigger).
//
// # Assertion Types
//
//   - pending_alarm: exactly one alarm is pending and it matches
//   - no_pending: nothing is pending
//   - outcome_count: an outcome occurs exactly N times
//   - outcome_order: outcomes appear in order, gaps allowed
//   - intent_emitted: an intent of the kind was emitted
//   - needs_reschedule: the persisted flag has the given value
//
// Besides the scenario's own assertions, CheckInvariants runs after every
// pass.
//
// # Golden Files
//
// RunWithGolden compares the trace with testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
