// Package engine implements the reschedule coordinator.
//
// The coordinator keeps exactly one host alarm registered for the next
// prayer. Everything that can invalidate the pending alarm funnels into it:
//
//   - an alarm firing (OnAlarmFired), whether or not sound played
//   - daemon start, wall-clock jumps and timezone changes (OnBootOrTimeChange)
//   - explicit requests from the API, MQTT or CLI (RequestReschedule)
//   - a pass interrupted by a crash (ResumePending at startup)
//
// ARCHITECTURE:
//
// Single-Consumer Trigger Loop:
// Entry points persist needs_reschedule=true and enqueue a Trigger, then
// return. Run drains the queue and folds all pending triggers into one pass,
// so a burst of triggers (boot plus a clock jump plus a manual request)
// costs one registration instead of three.
//
// Pass Flow:
//  1. Load typed preferences (prefs.Settings)
//  2. Notifications disabled: cancel every known slot and stop
//  3. No location: abort with CONFIGURATION_MISSING, leave the flag set
//  4. Compute the reference instant (now, floored at the fired prayer)
//  5. Select the next prayer from today's and tomorrow's times
//  6. Schedule it under schedule.DefaultSlot; a silenced prayer advances the
//     reference and selects again, up to the lookahead window
//  7. Clear the flag on completion, append a PassRecord, notify observers
//
// IDEMPOTENCE:
// Every pass registers under the same slot, and the host replaces rather
// than duplicates. N passes with unchanged inputs leave one pending alarm
// with the same instant.
//
// ERROR HANDLING:
// Errors are logged at the pass boundary and never escape Run. RunPass
// returns them for callers that want to display them, typed as fault.Error
// where a code applies.
package engine
