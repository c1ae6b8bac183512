// Package notify carries presentation intents out of the core.
//
// The scheduling and playback code never talks to a notification system
// directly. It emits an Intent ("show ongoing alert for Maghrib", "dismiss
// alert", "launch player") to a Sink, and adapters decide what that means on
// the host: a log line, an MQTT message, a desktop notification.
package notify
