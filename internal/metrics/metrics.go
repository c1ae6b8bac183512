package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/muezzin/internal/engine"
	"github.com/roach88/muezzin/internal/playback"
)

// Collector records reschedule passes and playback transitions.
// It implements engine.Observer and playback.Observer.
type Collector struct {
	registry *prometheus.Registry

	passes       *prometheus.CounterVec
	passDuration prometheus.Histogram
	nextAlarm    prometheus.Gauge
	playState    *prometheus.GaugeVec
	playStops    *prometheus.CounterVec
}

// New creates a Collector with its own registry, which also carries the
// Go runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "muezzin_reschedule_passes_total", Help: "Reschedule passes by trigger and outcome"},
			[]string{"trigger", "outcome"},
		),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "muezzin_reschedule_pass_duration_seconds",
			Help:    "Reschedule pass time",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		nextAlarm: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "muezzin_next_alarm_timestamp_seconds", Help: "Unix time of the registered alarm, 0 if none"},
		),
		playState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "muezzin_playback_state", Help: "1 for the current playback state"},
			[]string{"state"},
		),
		playStops: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "muezzin_playback_stops_total", Help: "Playback sessions stopped, by reason"},
			[]string{"reason"},
		),
	}
	c.registry.MustRegister(
		c.passes, c.passDuration, c.nextAlarm, c.playState, c.playStops,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.ObserveState(playback.StateIdle)
	return c
}

// ObservePass implements engine.Observer.
func (c *Collector) ObservePass(r engine.PassResult) {
	c.passes.WithLabelValues(string(r.Trigger.Kind), string(r.Outcome)).Inc()
	if !r.FinishedAt.IsZero() && !r.StartedAt.IsZero() {
		c.passDuration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	}
	switch {
	case r.Alarm != nil:
		c.nextAlarm.Set(float64(r.Alarm.At.Unix()))
	case r.Outcome == engine.PassAllDisabled || r.Outcome == engine.PassNotificationsDisabled:
		c.nextAlarm.Set(0)
	}
}

// ObserveState implements playback.Observer.
func (c *Collector) ObserveState(s playback.State) {
	for _, st := range []playback.State{playback.StateIdle, playback.StatePlaying, playback.StatePaused, playback.StateStopped} {
		v := 0.0
		if st == s {
			v = 1
		}
		c.playState.WithLabelValues(string(st)).Set(v)
	}
}

// ObserveStop implements playback.Observer.
func (c *Collector) ObserveStop(r playback.StopReason) {
	c.playStops.WithLabelValues(string(r)).Inc()
}

// Registry returns the registry the collectors live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
