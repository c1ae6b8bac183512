package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/roach88/muezzin/internal/fault"
	"github.com/roach88/muezzin/internal/notify"
)

// ErrNoSession is returned by Pause and Resume when nothing is playing.
var ErrNoSession = errors.New("no playback session")

// Defaults.
const (
	DefaultStartGrace      = 5 * time.Second
	DefaultWakeLockTimeout = 10 * time.Minute
	DefaultVolume          = 1.0
)

// Observer is told about state changes and stops (metrics).
type Observer interface {
	ObserveState(state State)
	ObserveStop(reason StopReason)
}

type nopObserver struct{}

func (nopObserver) ObserveState(State)     {}
func (nopObserver) ObserveStop(StopReason) {}

// Manager owns the playback device. At most one session exists at a time,
// and every transition happens under one mutex, so a new Play fully tears
// the previous session down before it starts output.
type Manager struct {
	mu       sync.Mutex
	session  *session
	lastStop StopReason

	output   Output
	wake     WakeLock
	focus    AudioFocus
	volume   DeviceVolume
	resolver SourceResolver

	sink            notify.Sink
	observer        Observer
	clock           clockwork.Clock
	startGrace      time.Duration
	wakeLockTimeout time.Duration
	defaultVolume   func(ctx context.Context) float64
	newID           func() string
	logger          *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSink sets where alert and player intents go. Default: notify.Discard.
func WithSink(s notify.Sink) Option {
	return func(m *Manager) { m.sink = s }
}

// WithObserver registers a state observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithClock sets the clock used for session timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithStartGrace bounds resource acquisition at the start of a session.
func WithStartGrace(d time.Duration) Option {
	return func(m *Manager) { m.startGrace = d }
}

// WithWakeLockTimeout sets the wake-lock safety timeout.
func WithWakeLockTimeout(d time.Duration) Option {
	return func(m *Manager) { m.wakeLockTimeout = d }
}

// WithDefaultVolume supplies the content volume for requests that leave it
// unset, typically the stored preference.
func WithDefaultVolume(f func(ctx context.Context) float64) Option {
	return func(m *Manager) { m.defaultVolume = f }
}

// WithSessionIDs overrides session ID generation.
func WithSessionIDs(f func() string) Option {
	return func(m *Manager) { m.newID = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager over the host facilities.
func NewManager(output Output, wake WakeLock, focus AudioFocus, volume DeviceVolume, resolver SourceResolver, opts ...Option) *Manager {
	m := &Manager{
		output:          output,
		wake:            wake,
		focus:           focus,
		volume:          volume,
		resolver:        resolver,
		sink:            notify.Discard,
		observer:        nopObserver{},
		clock:           clockwork.NewRealClock(),
		startGrace:      DefaultStartGrace,
		wakeLockTimeout: DefaultWakeLockTimeout,
		defaultVolume:   func(context.Context) float64 { return DefaultVolume },
		newID:           uuid.NewString,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "playback")
	return m
}

// Play starts a session for req, stopping any session already active.
//
// The ongoing alert is emitted before anything else because the host's
// foreground grace window starts with the request. Any failure tears the new
// session down completely and is returned for display; the caller need not
// clean up.
func (m *Manager) Play(ctx context.Context, req Request) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		_ = m.teardown(ctx, m.session, StopSuperseded)
	}

	s := &session{
		id:        m.newID(),
		state:     StateIdle,
		prayer:    req.Prayer,
		startedAt: m.clock.Now(),
	}
	m.session = s
	log := m.logger.With("session", s.id, "prayer", req.Prayer.String())

	m.emit(ctx, notify.Intent{
		Kind:      notify.KindShowOngoingAlert,
		Prayer:    req.Prayer,
		Sound:     firstNonEmpty(req.Sound, req.SoundFile),
		SessionID: s.id,
		At:        s.startedAt,
	})

	if err := m.acquire(ctx, s); err != nil {
		log.Error("failed to acquire playback resources", "error", err)
		return m.abort(ctx, s, StopError, err)
	}

	src, err := m.resolver.Resolve(req)
	if err != nil {
		log.Error("no playable sound", "error", err, "code", string(fault.CodeOf(err)))
		return m.abort(ctx, s, StopResourceUnavailable, err)
	}
	if src.Fallback {
		log.Warn("requested sound not found, using fallback", "requested", firstNonEmpty(req.Sound, req.SoundFile), "fallback", src.Name)
	}
	s.source = src

	s.requestedVolume = m.contentVolume(ctx, req)
	stream, err := m.output.Open(ctx, src, s.requestedVolume, m.completion(s.id))
	if err != nil {
		log.Error("failed to open audio output", "path", src.Path, "error", err)
		return m.abort(ctx, s, StopError, fmt.Errorf("open output: %w", err))
	}
	s.stream = stream
	s.state = StatePlaying
	m.observer.ObserveState(StatePlaying)

	m.emit(ctx, notify.Intent{
		Kind:      notify.KindLaunchPlayer,
		Prayer:    req.Prayer,
		Sound:     src.Path,
		SessionID: s.id,
		At:        m.clock.Now(),
	})
	log.Info("playback started", "path", src.Path, "volume", s.requestedVolume)
	return s.status(), nil
}

// acquire takes the wake-lock, audio focus and device volume, within the
// start grace window.
func (m *Manager) acquire(ctx context.Context, s *session) error {
	gctx, cancel := context.WithTimeout(ctx, m.startGrace)
	defer cancel()

	if err := m.wake.Acquire(gctx, m.wakeLockTimeout); err != nil {
		return fmt.Errorf("acquire wake lock: %w", err)
	}
	s.wakeHeld = true

	if err := m.focus.Request(gctx, m.focusListener(s.id)); err != nil {
		return fmt.Errorf("request audio focus: %w", err)
	}
	s.focusHeld = true

	saved, err := m.volume.Volume()
	if err != nil {
		return fmt.Errorf("read device volume: %w", err)
	}
	s.savedVolume = &saved
	if err := m.volume.SetVolume(1.0); err != nil {
		return fmt.Errorf("raise device volume: %w", err)
	}

	if err := gctx.Err(); err != nil {
		return fmt.Errorf("resource acquisition exceeded start grace of %s: %w", m.startGrace, err)
	}
	return nil
}

func (m *Manager) abort(ctx context.Context, s *session, reason StopReason, cause error) (Status, error) {
	if err := m.teardown(ctx, s, reason); err != nil {
		cause = errors.Join(cause, err)
	}
	return Status{State: StateStopped, SessionID: s.id, Prayer: s.prayer, LastStop: reason}, cause
}

func (m *Manager) contentVolume(ctx context.Context, req Request) float64 {
	v := DefaultVolume
	if req.Volume != nil {
		v = *req.Volume
	} else if m.defaultVolume != nil {
		v = m.defaultVolume(ctx)
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Pause suspends output and keeps every acquired resource.
// Pausing a paused session is a no-op.
func (m *Manager) Pause(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session
	if s == nil {
		return m.idleStatus(), ErrNoSession
	}
	if err := m.pause(ctx, s); err != nil {
		return m.idleStatus(), err
	}
	s.pausedByFocus = false
	return s.status(), nil
}

// Resume restarts a paused session. Resuming a playing session is a no-op.
func (m *Manager) Resume(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.session
	if s == nil {
		return m.idleStatus(), ErrNoSession
	}
	if err := m.resume(ctx, s); err != nil {
		return m.idleStatus(), err
	}
	return s.status(), nil
}

// Stop ends the active session. Stopping with no session is a no-op.
func (m *Manager) Stop(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return m.idleStatus(), nil
	}
	err := m.teardown(ctx, m.session, StopRequested)
	return m.idleStatus(), err
}

// Status returns a snapshot of the active session, or Idle.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return m.idleStatus()
	}
	st := m.session.status()
	st.LastStop = m.lastStop
	return st
}

func (m *Manager) idleStatus() Status {
	return Status{State: StateIdle, LastStop: m.lastStop}
}

// pause must be called with mu held. A stream failure stops the session.
func (m *Manager) pause(ctx context.Context, s *session) error {
	if s.state != StatePlaying {
		return nil
	}
	if err := s.stream.Pause(); err != nil {
		m.logger.Error("pause failed, stopping session", "session", s.id, "error", err)
		return errors.Join(fmt.Errorf("pause: %w", err), m.teardown(ctx, s, StopError))
	}
	s.state = StatePaused
	m.observer.ObserveState(StatePaused)
	m.logger.Info("playback paused", "session", s.id)
	return nil
}

// resume must be called with mu held.
func (m *Manager) resume(ctx context.Context, s *session) error {
	if s.state != StatePaused {
		return nil
	}
	if err := s.stream.Resume(); err != nil {
		m.logger.Error("resume failed, stopping session", "session", s.id, "error", err)
		return errors.Join(fmt.Errorf("resume: %w", err), m.teardown(ctx, s, StopError))
	}
	s.state = StatePlaying
	s.pausedByFocus = false
	m.observer.ObserveState(StatePlaying)
	m.logger.Info("playback resumed", "session", s.id)
	return nil
}

// teardown runs the full release sequence and clears the session. Every
// step runs even if an earlier one failed. Must be called with mu held.
func (m *Manager) teardown(ctx context.Context, s *session, reason StopReason) error {
	var errs []error

	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
		s.stream = nil
	}
	if s.savedVolume != nil {
		if err := m.volume.SetVolume(*s.savedVolume); err != nil {
			errs = append(errs, fmt.Errorf("restore device volume: %w", err))
		}
		s.savedVolume = nil
	}
	if s.focusHeld {
		if err := m.focus.Abandon(); err != nil {
			errs = append(errs, fmt.Errorf("abandon audio focus: %w", err))
		}
		s.focusHeld = false
	}
	if s.wakeHeld {
		if err := m.wake.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release wake lock: %w", err))
		}
		s.wakeHeld = false
	}
	m.emit(ctx, notify.Intent{
		Kind:      notify.KindDismissAlert,
		Prayer:    s.prayer,
		SessionID: s.id,
		At:        m.clock.Now(),
	})

	s.state = StateStopped
	if m.session == s {
		m.session = nil
	}
	m.lastStop = reason
	m.observer.ObserveState(StateStopped)
	m.observer.ObserveStop(reason)

	err := errors.Join(errs...)
	if err != nil {
		m.logger.Error("playback stopped with release errors", "session", s.id, "reason", string(reason), "error", err)
	} else {
		m.logger.Info("playback stopped", "session", s.id, "reason", string(reason))
	}
	return err
}

// completion returns the onDone callback for session id. A callback from a
// superseded session is ignored.
func (m *Manager) completion(id string) func(error) {
	return func(playErr error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		s := m.session
		if s == nil || s.id != id {
			return
		}
		s.stream = nil // already finished; nothing to close
		reason := StopCompleted
		if playErr != nil {
			reason = StopError
			m.logger.Error("playback failed", "session", id, "error", playErr)
		}
		_ = m.teardown(context.Background(), s, reason)
	}
}

func (m *Manager) focusListener(id string) FocusListener {
	return func(change FocusChange) {
		m.mu.Lock()
		defer m.mu.Unlock()

		s := m.session
		if s == nil || s.id != id {
			return
		}
		ctx := context.Background()
		m.logger.Info("audio focus changed", "session", id, "change", change.String())
		switch change {
		case FocusLossTransient:
			if s.state == StatePlaying {
				if err := m.pause(ctx, s); err == nil {
					s.pausedByFocus = true
				}
			}
		case FocusGain:
			if s.state == StatePaused && s.pausedByFocus {
				_ = m.resume(ctx, s)
			}
		case FocusLoss:
			_ = m.teardown(ctx, s, StopFocusLoss)
		}
	}
}

func (m *Manager) emit(ctx context.Context, in notify.Intent) {
	if err := m.sink.Emit(ctx, in); err != nil {
		m.logger.Warn("failed to emit intent", "kind", string(in.Kind), "error", err)
	}
}
