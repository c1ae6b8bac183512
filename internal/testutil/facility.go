package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/muezzin/internal/schedule"
)

// FakeFacility is an in-memory schedule.Facility.
//
// Registrations replace by slot, like the real host facility, and every call
// is recorded so tests can assert on history as well as on the pending set.
type FakeFacility struct {
	mu          sync.Mutex
	pending     map[schedule.Slot]schedule.Alarm
	history     []schedule.Alarm
	cancelled   []schedule.Slot
	denied      bool
	registerErr error
}

// NewFakeFacility creates a facility with exact-alarm capability granted.
func NewFakeFacility() *FakeFacility {
	return &FakeFacility{pending: make(map[schedule.Slot]schedule.Alarm)}
}

// RegisterExactWakeup implements schedule.Facility.
func (f *FakeFacility) RegisterExactWakeup(_ context.Context, a schedule.Alarm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return f.registerErr
	}
	f.pending[a.Slot] = a
	f.history = append(f.history, a)
	return nil
}

// Cancel implements schedule.Facility. Cancelling an empty slot is a no-op.
func (f *FakeFacility) Cancel(_ context.Context, slot schedule.Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, slot)
	f.cancelled = append(f.cancelled, slot)
	return nil
}

// HasExactAlarmCapability implements schedule.Facility.
func (f *FakeFacility) HasExactAlarmCapability(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.denied
}

// SetCapability grants or revokes exact-alarm capability.
func (f *FakeFacility) SetCapability(granted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied = !granted
}

// SetRegisterError makes every later registration fail with err.
func (f *FakeFacility) SetRegisterError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerErr = err
}

// Pending returns the registered alarms ordered by slot.
func (f *FakeFacility) Pending() []schedule.Alarm {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]schedule.Alarm, 0, len(f.pending))
	for _, a := range f.pending {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// History returns every successful registration in call order.
func (f *FakeFacility) History() []schedule.Alarm {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schedule.Alarm(nil), f.history...)
}

// Cancelled returns every cancelled slot in call order.
func (f *FakeFacility) Cancelled() []schedule.Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schedule.Slot(nil), f.cancelled...)
}
