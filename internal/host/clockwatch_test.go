package host

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muezzin/internal/engine"
)

// scripted returns samples from a list, repeating the last one.
type scripted struct {
	mu      sync.Mutex
	samples []Sample
	i       int
}

func (s *scripted) next() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.samples[s.i]
	if s.i < len(s.samples)-1 {
		s.i++
	}
	return out
}

type changes struct {
	mu    sync.Mutex
	kinds []engine.TriggerKind
}

func (c *changes) record(_ context.Context, k engine.TriggerKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, k)
}

func (c *changes) list() []engine.TriggerKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]engine.TriggerKind(nil), c.kinds...)
}

func TestClockWatcherCheck(t *testing.T) {
	base := time.Date(2024, 3, 10, 1, 0, 0, 0, time.FixedZone("EST", -5*3600))
	edt := time.FixedZone("EDT", -4*3600)

	tests := []struct {
		name   string
		second Sample
		want   engine.TriggerKind
		ok     bool
	}{
		{"steady", Sample{Wall: base.Add(30 * time.Second), Mono: 30 * time.Second}, "", false},
		{"small drift", Sample{Wall: base.Add(31 * time.Second), Mono: 30 * time.Second}, "", false},
		{"forward jump", Sample{Wall: base.Add(time.Hour), Mono: 30 * time.Second}, engine.TriggerTimeChanged, true},
		{"backward jump", Sample{Wall: base.Add(-10 * time.Minute), Mono: 30 * time.Second}, engine.TriggerTimeChanged, true},
		{"offset change", Sample{Wall: base.Add(30 * time.Second).In(edt), Mono: 30 * time.Second}, engine.TriggerTimezoneChanged, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got changes
			src := &scripted{samples: []Sample{{Wall: base}, tt.second}}
			w := NewClockWatcher(got.record, WithSampler(src.next))

			_, ok := w.Check(t.Context())
			require.False(t, ok, "first sample only sets the baseline")

			kind, ok := w.Check(t.Context())
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, kind)
			if tt.ok {
				assert.Equal(t, []engine.TriggerKind{tt.want}, got.list())
			} else {
				assert.Empty(t, got.list())
			}
		})
	}
}

func TestClockWatcherRun(t *testing.T) {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	src := &scripted{samples: []Sample{
		{Wall: base},
		{Wall: base.Add(2 * time.Hour), Mono: 30 * time.Second},
	}}
	clock := clockwork.NewFakeClock()
	var got changes
	w := NewClockWatcher(got.record, WithSampler(src.next), WithWatchClock(clock))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(DefaultWatchInterval)

	require.Eventually(t, func() bool { return len(got.list()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, engine.TriggerTimeChanged, got.list()[0])

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
