package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/muezzin/internal/fault"
	"github.com/roach88/muezzin/internal/prayer"
)

// Preference keys.
const (
	KeyLatitude             = "latitude"
	KeyLongitude            = "longitude"
	KeyCalculationMethod    = "calculation_method"
	KeyVolume               = "adhan_volume"
	KeySelectedAdhan        = "selected_adhan"
	KeyNotificationsEnabled = "notifications_enabled"
)

// Defaults applied when a key is absent or undecodable.
const (
	DefaultMethodName    = "north_america"
	DefaultVolume        = 1.0
	DefaultSelectedAdhan = "Rabeh Ibn Darah Al Jazairi - Adan Al Jazaer"
	DefaultLegacyPrefix  = "flutter."
)

// SoundEnabledKey returns the per-prayer sound toggle key, e.g.
// "maghrib_sound_enabled".
func SoundEnabledKey(p prayer.Prayer) string {
	return p.Key() + "_sound_enabled"
}

// Source is a read-only view of an untyped key-value store.
type Source interface {
	// Lookup returns the raw stored value. ok is false when the key is
	// missing; err is reserved for store failures.
	Lookup(ctx context.Context, key string) (raw any, ok bool, err error)
}

// Writer stores raw values.
type Writer interface {
	Set(ctx context.Context, key string, value any) error
}

// Lister enumerates every stored key with its raw value.
type Lister interface {
	All(ctx context.Context) (map[string]any, error)
}

// Settings is the typed view of the preferences the engine reads.
type Settings struct {
	Location             prayer.Coordinates
	HasLocation          bool
	MethodName           string
	Method               prayer.Method
	SoundEnabled         map[prayer.Prayer]bool
	Volume               float64
	SelectedAdhan        string
	NotificationsEnabled bool
}

// IsSoundEnabled reports the toggle for p, defaulting to true.
func (s Settings) IsSoundEnabled(p prayer.Prayer) bool {
	enabled, ok := s.SoundEnabled[p]
	return !ok || enabled
}

// Reader decodes preferences from a Source.
//
// Each key is tried bare first and then with the legacy prefix, so stores
// written by older front-ends ("flutter.latitude") keep working.
type Reader struct {
	src    Source
	prefix string
	logger *slog.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLogger sets the logger used for decode fallbacks and store failures.
func WithLogger(l *slog.Logger) ReaderOption {
	return func(r *Reader) { r.logger = l }
}

// NewReader creates a Reader. An empty legacyPrefix disables the prefixed
// lookup.
func NewReader(src Source, legacyPrefix string, opts ...ReaderOption) *Reader {
	r := &Reader{src: src, prefix: legacyPrefix, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "prefs")
	return r
}

// Value returns the classified value for key. Store failures are logged and
// reported as Absent.
func (r *Reader) Value(ctx context.Context, key string) Value {
	candidates := []string{key}
	if r.prefix != "" && !strings.HasPrefix(key, r.prefix) {
		candidates = append(candidates, r.prefix+key)
	}
	for _, k := range candidates {
		raw, ok, err := r.src.Lookup(ctx, k)
		if err != nil {
			r.logger.Warn("preference lookup failed", "key", k, "error", err)
			continue
		}
		if ok && raw != nil {
			return FromRaw(raw)
		}
	}
	return Absent
}

// Float returns the numeric value of key, or def when it is absent or
// cannot be decoded.
func (r *Reader) Float(ctx context.Context, key string, def float64) float64 {
	v := r.Value(ctx, key)
	if f, ok := v.Number(); ok {
		return f
	}
	if !v.IsAbsent() {
		r.fallback(key, v, fmt.Sprint(def))
	}
	return def
}

// Bool returns the boolean value of key, or def.
func (r *Reader) Bool(ctx context.Context, key string, def bool) bool {
	return r.Value(ctx, key).Bool(def)
}

// String returns the string value of key, or def.
func (r *Reader) String(ctx context.Context, key string, def string) string {
	return r.Value(ctx, key).String(def)
}

// SoundEnabled reports whether the adhan sound is enabled for p.
func (r *Reader) SoundEnabled(ctx context.Context, p prayer.Prayer) bool {
	return r.Bool(ctx, SoundEnabledKey(p), true)
}

// Load reads every preference the engine uses.
func (r *Reader) Load(ctx context.Context) Settings {
	s := Settings{
		SoundEnabled: make(map[prayer.Prayer]bool, len(prayer.All)),
	}

	lat := r.Value(ctx, KeyLatitude)
	lng := r.Value(ctx, KeyLongitude)
	latF, latOK := lat.Number()
	lngF, lngOK := lng.Number()
	if !latOK && !lat.IsAbsent() {
		r.fallback(KeyLatitude, lat, "missing")
	}
	if !lngOK && !lng.IsAbsent() {
		r.fallback(KeyLongitude, lng, "missing")
	}
	if latOK && lngOK {
		s.Location = prayer.Coordinates{Latitude: latF, Longitude: lngF}
		s.HasLocation = s.Location.Valid()
		if !s.HasLocation {
			r.logger.Warn("stored location out of range", "latitude", latF, "longitude", lngF)
		}
	}

	s.MethodName = r.String(ctx, KeyCalculationMethod, DefaultMethodName)
	s.Method = prayer.ParseMethod(s.MethodName)

	for _, p := range prayer.All {
		s.SoundEnabled[p] = r.SoundEnabled(ctx, p)
	}

	s.Volume = clamp(r.Float(ctx, KeyVolume, DefaultVolume), 0, 1)
	s.SelectedAdhan = r.String(ctx, KeySelectedAdhan, DefaultSelectedAdhan)
	s.NotificationsEnabled = r.Bool(ctx, KeyNotificationsEnabled, true)
	return s
}

func (r *Reader) fallback(key string, v Value, def string) {
	r.logger.Debug("preference value undecodable, using default",
		"key", key,
		"kind", v.Kind().String(),
		"default", def,
		"code", string(fault.DecodeFallback),
	)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
