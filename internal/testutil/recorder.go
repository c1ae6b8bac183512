package testutil

import (
	"context"
	"sync"

	"github.com/roach88/muezzin/internal/notify"
)

// Recorder is a notify.Sink that keeps every intent.
type Recorder struct {
	mu      sync.Mutex
	intents []notify.Intent
}

// Emit implements notify.Sink.
func (r *Recorder) Emit(_ context.Context, in notify.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, in)
	return nil
}

// Intents returns a copy of the recorded intents.
func (r *Recorder) Intents() []notify.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Intent(nil), r.intents...)
}

// Kinds returns the recorded intent kinds in order.
func (r *Recorder) Kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, len(r.intents))
	for i, in := range r.intents {
		out[i] = in.Kind
	}
	return out
}
