package harness

// TraceEvent is one reschedule pass as seen by the harness.
type TraceEvent struct {
	Step    int      `json:"step"`
	Now     string   `json:"now"`
	Pass    string   `json:"pass"`
	Trigger string   `json:"trigger"`
	Outcome string   `json:"outcome"`
	Prayer  string   `json:"prayer,omitempty"`
	At      string   `json:"at,omitempty"`
	IsIsha  bool     `json:"is_isha,omitempty"`
	Code    string   `json:"code,omitempty"`
	Intents []string `json:"intents,omitempty"`
}

// PendingAlarm is a registration left with the facility when the scenario
// ended.
type PendingAlarm struct {
	Slot   int    `json:"slot"`
	Prayer string `json:"prayer"`
	Sound  string `json:"sound"`
	At     string `json:"at"`
	IsIsha bool   `json:"is_isha,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	Trace   []TraceEvent   `json:"trace"`
	Pending []PendingAlarm `json:"pending"`

	// NeedsReschedule is the persisted flag after the last step.
	NeedsReschedule bool `json:"needs_reschedule"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Pending: []PendingAlarm{},
		Errors:  []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddPass appends a pass to the trace.
func (r *Result) AddPass(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
