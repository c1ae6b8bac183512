package engine

import "sync"

// triggerQueue is a thread-safe FIFO of reschedule triggers.
//
// Producers are host callbacks (alarm receiver, clock watcher, API handlers)
// and the coordinator's Run loop is the only consumer. The signal channel has
// a buffer of one, so any number of enqueues between two wakeups collapse
// into a single wakeup, and Drain folds everything pending into one pass.
type triggerQueue struct {
	mu       sync.Mutex
	triggers []Trigger
	closed   bool
	signal   chan struct{} // buffered, size 1
}

func newTriggerQueue() *triggerQueue {
	return &triggerQueue{
		triggers: make([]Trigger, 0, 8),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a trigger. Returns false if the queue is closed.
// Thread-safe: may be called from any goroutine.
func (q *triggerQueue) Enqueue(t Trigger) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.triggers = append(q.triggers, t)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Drain removes every pending trigger and returns them merged into one.
// Returns false if nothing was pending.
func (q *triggerQueue) Drain() (Trigger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.triggers) == 0 {
		return Trigger{}, false
	}
	merged := q.triggers[0]
	for _, t := range q.triggers[1:] {
		merged = merged.merge(t)
	}
	q.triggers = q.triggers[:0]
	return merged, true
}

// Wait returns a channel that signals when triggers may be available.
// The channel is closed when the queue is closed.
func (q *triggerQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending triggers.
func (q *triggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.triggers)
}

// Closed reports whether Close has been called.
func (q *triggerQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting triggers and wakes any waiter.
func (q *triggerQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
