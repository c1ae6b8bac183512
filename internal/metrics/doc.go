// Package metrics exports reschedule and playback counters to Prometheus.
package metrics
