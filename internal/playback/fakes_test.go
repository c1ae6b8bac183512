package playback

import (
	"context"
	"sync"
	"time"
)

// journal records host calls in order across every fake.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

func (j *journal) reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = nil
}

type fakeStream struct {
	j         *journal
	pauseErr  error
	resumeErr error
	closeErr  error
	paused    bool
	closed    bool
}

func (s *fakeStream) Pause() error {
	s.j.add("stream.pause")
	if s.pauseErr != nil {
		return s.pauseErr
	}
	s.paused = true
	return nil
}

func (s *fakeStream) Resume() error {
	s.j.add("stream.resume")
	if s.resumeErr != nil {
		return s.resumeErr
	}
	s.paused = false
	return nil
}

func (s *fakeStream) Close() error {
	s.j.add("stream.close")
	s.closed = true
	return s.closeErr
}

type fakeOutput struct {
	j       *journal
	openErr error
	streams []*fakeStream
	onDone  []func(error)
	volumes []float64
	sources []Source
}

func (o *fakeOutput) Open(_ context.Context, src Source, volume float64, onDone func(error)) (Stream, error) {
	o.j.add("output.open")
	if o.openErr != nil {
		return nil, o.openErr
	}
	st := &fakeStream{j: o.j}
	o.streams = append(o.streams, st)
	o.onDone = append(o.onDone, onDone)
	o.volumes = append(o.volumes, volume)
	o.sources = append(o.sources, src)
	return st, nil
}

func (o *fakeOutput) last() *fakeStream {
	return o.streams[len(o.streams)-1]
}

type fakeWake struct {
	j          *journal
	held       bool
	timeout    time.Duration
	acquireErr error
	releaseErr error
}

func (w *fakeWake) Acquire(_ context.Context, timeout time.Duration) error {
	w.j.add("wake.acquire")
	if w.acquireErr != nil {
		return w.acquireErr
	}
	w.held = true
	w.timeout = timeout
	return nil
}

func (w *fakeWake) Release() error {
	w.j.add("wake.release")
	w.held = false
	return w.releaseErr
}

type fakeFocus struct {
	j          *journal
	held       bool
	listener   FocusListener
	requestErr error
	block      bool
}

func (f *fakeFocus) Request(ctx context.Context, l FocusListener) error {
	f.j.add("focus.request")
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.requestErr != nil {
		return f.requestErr
	}
	f.held = true
	f.listener = l
	return nil
}

func (f *fakeFocus) Abandon() error {
	f.j.add("focus.abandon")
	f.held = false
	return nil
}

type fakeVolume struct {
	j      *journal
	level  float64
	setErr error
}

func (v *fakeVolume) Volume() (float64, error) {
	return v.level, nil
}

func (v *fakeVolume) SetVolume(level float64) error {
	v.j.add("volume.set")
	if v.setErr != nil {
		return v.setErr
	}
	v.level = level
	return nil
}

type staticResolver struct {
	src Source
	err error
}

func (r staticResolver) Resolve(Request) (Source, error) {
	return r.src, r.err
}
