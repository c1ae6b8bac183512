package harness

import (
	"fmt"
	"strings"
	"time"
)

// AssertionContext carries what assertions need beyond the Result.
type AssertionContext struct {
	// Intents are every intent kind emitted during the scenario, in order.
	Intents []string

	Location *time.Location
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s", ev.Step, ev.Now, ev.Trigger, ev.Outcome)
			if ev.Prayer != "" {
				fmt.Fprintf(&buf, " %s@%s", ev.Prayer, ev.At)
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertPendingAlarm:
		return assertPendingAlarm(result, a)
	case AssertNoPending:
		return assertNoPending(result)
	case AssertOutcomeCount:
		return assertOutcomeCount(result.Trace, a)
	case AssertOutcomeOrder:
		return assertOutcomeOrder(result.Trace, a)
	case AssertIntentEmitted:
		return assertIntentEmitted(result.Trace, actx.Intents, a)
	case AssertNeedsReschedule:
		return assertNeedsReschedule(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertPendingAlarm checks that exactly one alarm is pending and that it
// matches the specified fields.
func assertPendingAlarm(result *Result, a Assertion) error {
	if len(result.Pending) != 1 {
		return &AssertionError{
			Type:     AssertPendingAlarm,
			Expected: fmt.Sprintf("one pending %s alarm", a.Prayer),
			Actual:   fmt.Sprintf("%d pending alarms %v", len(result.Pending), result.Pending),
			Trace:    result.Trace,
		}
	}
	got := result.Pending[0]

	var diffs []string
	if !samePrayer(got.Prayer, a.Prayer) {
		diffs = append(diffs, fmt.Sprintf("prayer %s", got.Prayer))
	}
	if a.At != "" && got.At != a.At {
		diffs = append(diffs, fmt.Sprintf("at %s", got.At))
	}
	if a.IsIsha != nil && got.IsIsha != *a.IsIsha {
		diffs = append(diffs, fmt.Sprintf("is_isha %t", got.IsIsha))
	}
	if a.Sound != "" && got.Sound != a.Sound {
		diffs = append(diffs, fmt.Sprintf("sound %q", got.Sound))
	}
	if len(diffs) > 0 {
		return &AssertionError{
			Type:     AssertPendingAlarm,
			Expected: describePending(a),
			Actual:   strings.Join(diffs, ", "),
			Trace:    result.Trace,
		}
	}
	return nil
}

func describePending(a Assertion) string {
	parts := []string{a.Prayer}
	if a.At != "" {
		parts = append(parts, "at "+a.At)
	}
	if a.IsIsha != nil {
		parts = append(parts, fmt.Sprintf("is_isha %t", *a.IsIsha))
	}
	if a.Sound != "" {
		parts = append(parts, fmt.Sprintf("sound %q", a.Sound))
	}
	return strings.Join(parts, ", ")
}

func assertNoPending(result *Result) error {
	if len(result.Pending) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertNoPending,
		Expected: "no pending alarms",
		Actual:   fmt.Sprintf("%d pending alarms %v", len(result.Pending), result.Pending),
		Trace:    result.Trace,
	}
}

// assertOutcomeCount checks that the outcome occurs exactly Count times.
func assertOutcomeCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Outcome == a.Outcome {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertOutcomeCount,
			Expected: fmt.Sprintf("%d passes with outcome %s", a.Count, a.Outcome),
			Actual:   fmt.Sprintf("%d passes", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertOutcomeOrder checks that the outcomes appear in the given order.
// Other passes may appear in between.
func assertOutcomeOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Outcomes) && ev.Outcome == a.Outcomes[next] {
			next++
		}
	}
	if next == len(a.Outcomes) {
		return nil
	}

	got := make([]string, len(trace))
	for i, ev := range trace {
		got[i] = ev.Outcome
	}
	return &AssertionError{
		Type:     AssertOutcomeOrder,
		Expected: fmt.Sprintf("outcomes in order: %v", a.Outcomes),
		Actual:   fmt.Sprintf("%v (missing %s)", got, a.Outcomes[next]),
		Trace:    trace,
	}
}

func assertIntentEmitted(trace []TraceEvent, intents []string, a Assertion) error {
	for _, kind := range intents {
		if kind == a.Intent {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertIntentEmitted,
		Expected: fmt.Sprintf("intent %s", a.Intent),
		Actual:   fmt.Sprintf("emitted %v", intents),
		Trace:    trace,
	}
}

func assertNeedsReschedule(result *Result, a Assertion) error {
	if result.NeedsReschedule == *a.Value {
		return nil
	}
	return &AssertionError{
		Type:     AssertNeedsReschedule,
		Expected: fmt.Sprintf("needs_reschedule = %t", *a.Value),
		Actual:   fmt.Sprintf("needs_reschedule = %t", result.NeedsReschedule),
		Trace:    result.Trace,
	}
}
