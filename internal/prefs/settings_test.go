package prefs

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muezzin/internal/prayer"
)

func TestLoadDefaults(t *testing.T) {
	r := NewReader(NewMapSource(nil), DefaultLegacyPrefix)
	s := r.Load(context.Background())

	assert.False(t, s.HasLocation)
	assert.Equal(t, DefaultMethodName, s.MethodName)
	assert.Equal(t, prayer.NorthAmerica, s.Method)
	assert.Equal(t, 1.0, s.Volume)
	assert.Equal(t, DefaultSelectedAdhan, s.SelectedAdhan)
	assert.True(t, s.NotificationsEnabled)
	for _, p := range prayer.All {
		assert.True(t, s.IsSoundEnabled(p), p.String())
	}
}

func TestLoadLegacyPrefixedKeys(t *testing.T) {
	src := NewMapSource(map[string]any{
		"flutter.latitude":              int64(math.Float64bits(40.0)),
		"flutter.longitude":             "VGhpcyBpcyB0aGUgcHJlZml4IGZvciBEb3VibGUu-74.0",
		"flutter.calculation_method":    "egyptian",
		"flutter.maghrib_sound_enabled": false,
		"flutter.adhan_volume":          "PREFIX_DOUBLE_0.6",
		"flutter.selected_adhan":        "Mishary Rashid",
	})
	s := NewReader(src, DefaultLegacyPrefix).Load(context.Background())

	require.True(t, s.HasLocation)
	assert.Equal(t, prayer.Coordinates{Latitude: 40.0, Longitude: -74.0}, s.Location)
	assert.Equal(t, prayer.Egyptian, s.Method)
	assert.False(t, s.IsSoundEnabled(prayer.Maghrib))
	assert.True(t, s.IsSoundEnabled(prayer.Fajr))
	assert.InDelta(t, 0.6, s.Volume, 1e-9)
	assert.Equal(t, "Mishary Rashid", s.SelectedAdhan)
}

func TestBareKeyWinsOverPrefixed(t *testing.T) {
	src := NewMapSource(map[string]any{
		"latitude":         21.4,
		"flutter.latitude": 10.0,
	})
	r := NewReader(src, DefaultLegacyPrefix)
	assert.Equal(t, 21.4, r.Float(context.Background(), KeyLatitude, 0))
}

func TestNoPrefixDisablesLegacyLookup(t *testing.T) {
	src := NewMapSource(map[string]any{"flutter.latitude": 10.0})
	r := NewReader(src, "")
	assert.Equal(t, -1.0, r.Float(context.Background(), KeyLatitude, -1))
}

func TestLoadRejectsOutOfRangeLocation(t *testing.T) {
	src := NewMapSource(map[string]any{"latitude": 123.0, "longitude": 10.0})
	s := NewReader(src, "").Load(context.Background())
	assert.False(t, s.HasLocation)
}

func TestLoadUndecodableFallsBack(t *testing.T) {
	src := NewMapSource(map[string]any{
		"latitude":     "unknown",
		"longitude":    5.0,
		"adhan_volume": "loud",
	})
	s := NewReader(src, "").Load(context.Background())
	assert.False(t, s.HasLocation)
	assert.Equal(t, DefaultVolume, s.Volume)
}

func TestVolumeClamped(t *testing.T) {
	src := NewMapSource(map[string]any{"adhan_volume": 3.0})
	assert.Equal(t, 1.0, NewReader(src, "").Load(context.Background()).Volume)

	require.NoError(t, src.Set(context.Background(), "adhan_volume", -2))
	assert.Equal(t, 0.0, NewReader(src, "").Load(context.Background()).Volume)
}

type failingSource struct{}

func (failingSource) Lookup(context.Context, string) (any, bool, error) {
	return nil, false, errors.New("store offline")
}

func TestStoreFailureDegradesToDefaults(t *testing.T) {
	s := NewReader(failingSource{}, DefaultLegacyPrefix).Load(context.Background())
	assert.False(t, s.HasLocation)
	assert.True(t, s.NotificationsEnabled)
	assert.Equal(t, prayer.NorthAmerica, s.Method)
}

func TestMapSource(t *testing.T) {
	ctx := context.Background()
	m := NewMapSource(map[string]any{"a": 1})
	require.NoError(t, m.Set(ctx, "b", "two"))

	all, err := m.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	m.Delete("a")
	_, ok, err := m.Lookup(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSoundEnabledKey(t *testing.T) {
	assert.Equal(t, "fajr_sound_enabled", SoundEnabledKey(prayer.Fajr))
	assert.Equal(t, "isha_sound_enabled", SoundEnabledKey(prayer.Isha))
}
