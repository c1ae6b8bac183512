// Package daemon assembles the service: preferences, the reschedule
// coordinator, the gocron alarm facility, playback on the local speaker,
// the clock watcher, and the optional HTTP and MQTT control surfaces.
//
// Daemon implements control.Controller, so both remote surfaces drive the
// same Dispatch.
package daemon
