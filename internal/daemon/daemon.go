package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/muezzin/internal/api"
	"github.com/roach88/muezzin/internal/audio"
	"github.com/roach88/muezzin/internal/broker"
	"github.com/roach88/muezzin/internal/config"
	"github.com/roach88/muezzin/internal/control"
	"github.com/roach88/muezzin/internal/engine"
	"github.com/roach88/muezzin/internal/fault"
	"github.com/roach88/muezzin/internal/host"
	"github.com/roach88/muezzin/internal/metrics"
	"github.com/roach88/muezzin/internal/notify"
	"github.com/roach88/muezzin/internal/playback"
	"github.com/roach88/muezzin/internal/prayer"
	"github.com/roach88/muezzin/internal/prefs"
	"github.com/roach88/muezzin/internal/schedule"
	"github.com/roach88/muezzin/internal/store"
)

// RecentPassLimit is how many audit-log entries a Snapshot carries.
const RecentPassLimit = 5

// Components are the pieces Assemble wires together. Store, Facility,
// Output and Volume are required; the rest have defaults.
type Components struct {
	Store    *store.Store
	Prefs    prefs.Source
	Provider prayer.Provider
	Facility schedule.Facility
	Output   playback.Output
	Volume   playback.DeviceVolume
	Wake     playback.WakeLock
	Focus    *host.FocusArbiter
	Sinks    []notify.Sink
	Clock    clockwork.Clock
	IDs      engine.IDGenerator
	// SessionIDs overrides playback session ID generation.
	SessionIDs func() string
}

// Daemon is the assembled service.
type Daemon struct {
	cfg      config.Config
	loc      *time.Location
	store    *store.Store
	reader   *prefs.Reader
	provider prayer.Provider

	coord    *engine.Coordinator
	player   *playback.Manager
	focus    *host.FocusArbiter
	receiver *Receiver
	watcher  *host.ClockWatcher
	metrics  *metrics.Collector
	api      *api.Server

	alarms  *host.AlarmClock
	bridge  *broker.Bridge
	closers []func() error

	clock  clockwork.Clock
	logger *slog.Logger
}

// Open builds the production daemon from cfg: SQLite state, the configured
// preference backend, gocron alarms, the speaker, and the optional MQTT
// bridge.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	closers := []func() error{st.Close}
	fail := func(err error) (*Daemon, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, err
	}

	var src prefs.Source = st
	if cfg.Preferences.Backend == config.BackendRedis {
		rc := cfg.Preferences.Redis
		rs, client, err := prefs.NewRedisSource(ctx, prefs.RedisOptions{Addr: rc.Addr, Password: rc.Password, DB: rc.DB, Key: rc.Key})
		if err != nil {
			return fail(err)
		}
		src = rs
		closers = append(closers, client.Close)
	}

	var bridge *broker.Bridge
	var sinks []notify.Sink
	if cfg.MQTT.Enabled {
		bridge, err = broker.Connect(broker.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Prefix:   cfg.MQTT.TopicPrefix,
			QoS:      byte(cfg.MQTT.QoS),
		}, logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, bridge)
		closers = append(closers, func() error { bridge.Close(); return nil })
	}

	alarms := host.NewAlarmClock(loc,
		host.WithMirror(st),
		host.WithExactAlarms(cfg.ExactAlarms),
		host.WithAlarmLogger(logger),
	)
	device := audio.NewDevice(logger)

	d, err := Assemble(cfg, Components{
		Store:    st,
		Prefs:    src,
		Facility: alarms,
		Output:   device,
		Volume:   device,
		Sinks:    sinks,
	}, logger)
	if err != nil {
		return fail(err)
	}
	d.alarms = alarms
	d.bridge = bridge
	d.closers = closers
	alarms.OnFire(d.receiver.OnAlarmFired)
	return d, nil
}

// Assemble wires c into a Daemon without touching the network or the
// audio hardware.
func Assemble(cfg config.Config, c Components, logger *slog.Logger) (*Daemon, error) {
	if c.Store == nil || c.Facility == nil || c.Output == nil || c.Volume == nil {
		return nil, errors.New("daemon: store, facility, output and volume are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if c.Prefs == nil {
		c.Prefs = c.Store
	}
	if c.Provider == nil {
		c.Provider = prayer.Calculator{}
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Wake == nil {
		c.Wake = host.NewWakeLock(c.Clock, logger)
	}
	if c.Focus == nil {
		c.Focus = host.NewFocusArbiter(logger)
	}
	if c.IDs == nil {
		c.IDs = engine.UUIDv7Generator{}
	}

	d := &Daemon{
		cfg:      cfg,
		loc:      loc,
		store:    c.Store,
		provider: c.Provider,
		focus:    c.Focus,
		metrics:  metrics.New(),
		clock:    c.Clock,
		logger:   logger.With("component", "daemon"),
	}
	d.reader = prefs.NewReader(c.Prefs, cfg.LegacyPrefix, prefs.WithLogger(logger))

	sink := notify.MultiSink(append([]notify.Sink{notify.NewLogSink(logger)}, c.Sinks...))

	scheduler := schedule.NewScheduler(c.Facility, d.reader,
		schedule.WithClock(c.Clock),
		schedule.WithLogger(logger),
	)
	d.coord = engine.New(c.Store, d.reader, c.Provider, scheduler,
		engine.WithClock(c.Clock),
		engine.WithLocation(loc),
		engine.WithSink(sink),
		engine.WithObserver(d.metrics),
		engine.WithIDGenerator(c.IDs),
		engine.WithFajrSound(cfg.FajrSound),
		engine.WithLookaheadDays(cfg.LookaheadDays),
		engine.WithLogger(logger),
	)

	playOpts := []playback.Option{
		playback.WithSink(sink),
		playback.WithObserver(d.metrics),
		playback.WithClock(c.Clock),
		playback.WithStartGrace(cfg.StartGrace.Std()),
		playback.WithWakeLockTimeout(cfg.WakeLockTimeout.Std()),
		playback.WithDefaultVolume(func(ctx context.Context) float64 { return d.reader.Load(ctx).Volume }),
		playback.WithLogger(logger),
	}
	if c.SessionIDs != nil {
		playOpts = append(playOpts, playback.WithSessionIDs(c.SessionIDs))
	}
	resolver := playback.NewResolver(cfg.SoundsDir, cfg.FallbackSound)
	d.player = playback.NewManager(c.Output, c.Wake, c.Focus, c.Volume, resolver, playOpts...)

	d.receiver = NewReceiver(d.reader, d.player, d.coord, sink, c.Clock, logger)
	d.watcher = host.NewClockWatcher(d.onClockChange,
		host.WithWatchInterval(cfg.ClockCheckInterval.Std()),
		host.WithJumpTolerance(cfg.ClockJumpThreshold.Std()),
		host.WithWatchClock(c.Clock),
		host.WithWatchLogger(logger),
	)
	if cfg.API.Enabled {
		d.api = api.New(d,
			api.WithMetrics(d.metrics.Handler()),
			api.WithLocation(loc),
			api.WithLogger(logger),
		)
	}
	return d, nil
}

// Run starts every loop and blocks until ctx is done or one of them fails.
//
// Startup order: restore mirrored alarms, start the coordinator, resume an
// interrupted pass, request the boot pass, then start the clock watcher and
// the remote surfaces.
func (d *Daemon) Run(ctx context.Context) error {
	if d.alarms != nil {
		if err := d.alarms.Start(ctx); err != nil {
			return err
		}
		defer d.alarms.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(d.coord.Run(ctx)) })

	resumed, err := d.coord.ResumePending(ctx)
	if err != nil {
		d.logger.Warn("failed to check for interrupted pass", "error", err)
	} else if resumed {
		d.logger.Info("previous reschedule did not complete, retrying")
	}
	if err := d.coord.OnBootOrTimeChange(ctx, engine.TriggerBoot); err != nil {
		d.logger.Error("failed to request boot pass", "error", err)
	}

	g.Go(func() error { return ignoreCanceled(d.watcher.Run(ctx)) })

	if d.bridge != nil {
		if err := d.bridge.Serve(ctx, d); err != nil {
			d.logger.Warn("mqtt commands unavailable", "error", err)
		}
	}
	if d.api != nil {
		g.Go(func() error { return d.api.Run(ctx, d.cfg.API.Listen) })
	}

	d.logger.Info("daemon running", "timezone", d.loc.String())
	err = g.Wait()

	if _, stopErr := d.player.Stop(context.Background()); stopErr != nil {
		d.logger.Warn("failed to stop playback on shutdown", "error", stopErr)
	}
	d.coord.Stop()
	d.logger.Info("daemon stopped")
	return err
}

// Close releases the store and any remote connections.
func (d *Daemon) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// Dispatch implements control.Controller.
func (d *Daemon) Dispatch(ctx context.Context, cmd control.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	var err error
	switch cmd.Action {
	case control.ActionPlay:
		req := cmd.PlayRequest()
		if req.Sound == "" && req.SoundFile == "" {
			req.Sound = d.reader.Load(ctx).SelectedAdhan
		}
		_, err = d.player.Play(ctx, req)
	case control.ActionPause:
		_, err = d.player.Pause(ctx)
	case control.ActionResume:
		_, err = d.player.Resume(ctx)
	case control.ActionStop:
		_, err = d.player.Stop(ctx)
	case control.ActionReschedule:
		err = d.coord.RequestReschedule(ctx)
	case control.ActionInterrupt:
		d.focus.Interrupt(!cmd.Permanent)
	case control.ActionRestore:
		d.focus.Restore()
	}
	return err
}

// Snapshot implements control.Controller.
func (d *Daemon) Snapshot(ctx context.Context) (control.Snapshot, error) {
	snap := control.Snapshot{
		Now:      d.clock.Now().In(d.loc),
		Playback: d.player.Status(),
	}
	var err error
	if snap.Reschedule, err = d.store.LoadRescheduleState(ctx); err != nil {
		return control.Snapshot{}, err
	}
	alarms, err := d.store.PendingAlarms(ctx, d.loc)
	if err != nil {
		return control.Snapshot{}, err
	}
	if len(alarms) > 0 {
		snap.NextAlarm = &alarms[0]
	}
	if snap.RecentPasses, err = d.store.RecentPasses(ctx, RecentPassLimit); err != nil {
		return control.Snapshot{}, err
	}
	return snap, nil
}

// Times implements control.Controller.
func (d *Daemon) Times(ctx context.Context, date time.Time) (prayer.DailyTimes, error) {
	settings := d.reader.Load(ctx)
	if !settings.HasLocation {
		return prayer.DailyTimes{}, fault.New(fault.ConfigurationMissing, "daemon.times", "location is not configured")
	}
	times, err := d.provider.Times(settings.Location, settings.Method, prayer.DateOf(date.In(d.loc)))
	if err != nil {
		return prayer.DailyTimes{}, fmt.Errorf("prayer times: %w", err)
	}
	return times, nil
}

// Coordinator returns the reschedule coordinator.
func (d *Daemon) Coordinator() *engine.Coordinator { return d.coord }

// Player returns the playback manager.
func (d *Daemon) Player() *playback.Manager { return d.player }

// Receiver returns the alarm receiver.
func (d *Daemon) Receiver() *Receiver { return d.receiver }

// Metrics returns the metrics collector.
func (d *Daemon) Metrics() *metrics.Collector { return d.metrics }

// API returns the HTTP server, or nil when the API is disabled.
func (d *Daemon) API() *api.Server { return d.api }

func (d *Daemon) onClockChange(ctx context.Context, kind engine.TriggerKind) {
	if err := d.coord.OnBootOrTimeChange(ctx, kind); err != nil {
		d.logger.Warn("failed to request reschedule after clock change", "kind", string(kind), "error", err)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
