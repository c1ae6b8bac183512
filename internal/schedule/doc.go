// Package schedule selects the next prayer and registers its wake-up.
//
// SelectNext is a pure function over one day's times. Scheduler wraps the
// host's exact-timer Facility with the registration guards (stale trigger,
// disabled sound, missing capability) and the slot-identity discipline: every
// alarm goes under a single deterministic Slot, so each registration replaces
// the previous one and at most one wake-up is ever pending.
package schedule
