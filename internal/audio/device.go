package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/roach88/muezzin/internal/playback"
)

const (
	DefaultSampleRate = beep.SampleRate(44100)
	SpeakerBufferSize = 100 * time.Millisecond
	ResampleQuality   = 4
	// MinVolumeExponent is the quietest audible level in base-2 exponent
	// units; anything quieter is silent.
	MinVolumeExponent = -10.0
)

// Device is the speaker. It implements playback.Output for streams and
// playback.DeviceVolume as a master gain shared by every stream.
type Device struct {
	mu      sync.Mutex
	rate    beep.SampleRate
	inited  bool
	master  float64
	streams map[*stream]struct{}
	logger  *slog.Logger
}

// NewDevice creates a Device. The speaker is initialized on first Open.
func NewDevice(logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{
		rate:    DefaultSampleRate,
		master:  1.0,
		streams: make(map[*stream]struct{}),
		logger:  logger.With("component", "audio"),
	}
}

// Open decodes src and starts it on the speaker.
func (d *Device) Open(_ context.Context, src playback.Source, volume float64, onDone func(error)) (playback.Stream, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("open sound: %w", err)
	}
	decoded, format, err := decode(f, src.Path)
	if err != nil {
		f.Close()
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.initLocked(); err != nil {
		decoded.Close()
		return nil, err
	}

	var s beep.Streamer = decoded
	if format.SampleRate != d.rate {
		s = beep.Resample(ResampleQuality, format.SampleRate, d.rate, decoded)
	}

	st := &stream{dev: d, decoded: decoded, content: volume, onDone: onDone}
	st.vol = &effects.Volume{Streamer: s, Base: 2}
	st.applyGain(d.master)
	st.ctrl = &beep.Ctrl{Streamer: st.vol}
	d.streams[st] = struct{}{}

	// The callback runs with the speaker lock held; finishing takes d.mu
	// and may call back into playback, so it must not run inline.
	speaker.Play(beep.Seq(st.ctrl, beep.Callback(func() {
		go st.finish(decoded.Err())
	})))

	d.logger.Debug("stream opened", "path", src.Path, "rate", int(format.SampleRate), "volume", volume)
	return st, nil
}

func (d *Device) initLocked() error {
	if d.inited {
		return nil
	}
	if err := speaker.Init(d.rate, d.rate.N(SpeakerBufferSize)); err != nil {
		return fmt.Errorf("initialize speaker: %w", err)
	}
	d.inited = true
	return nil
}

// Volume returns the master gain.
func (d *Device) Volume() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.master, nil
}

// SetVolume sets the master gain and applies it to running streams.
func (d *Device) SetVolume(v float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.master = clamp01(v)
	if !d.inited {
		return nil
	}
	speaker.Lock()
	for st := range d.streams {
		st.applyGain(d.master)
	}
	speaker.Unlock()
	return nil
}

func (d *Device) untrack(st *stream) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.streams, st)
}

type stream struct {
	dev     *Device
	decoded beep.StreamSeekCloser
	ctrl    *beep.Ctrl
	vol     *effects.Volume
	content float64
	onDone  func(error)

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// applyGain sets the effective level to content*master.
// Callers hold the speaker lock (or the stream is not playing yet).
func (s *stream) applyGain(master float64) {
	s.vol.Volume, s.vol.Silent = gainToExponent(s.content * master)
}

func (s *stream) Pause() error {
	speaker.Lock()
	s.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

func (s *stream) Resume() error {
	speaker.Lock()
	s.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

// Close stops the stream. onDone is not called afterwards.
func (s *stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	speaker.Lock()
	s.ctrl.Streamer = nil
	speaker.Unlock()

	s.dev.untrack(s)
	return s.closeDecoder()
}

func (s *stream) finish(err error) {
	s.dev.untrack(s)
	closeErr := s.closeDecoder()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || s.onDone == nil {
		return
	}
	if err == nil && closeErr != nil {
		err = closeErr
	}
	s.onDone(err)
}

func (s *stream) closeDecoder() error {
	var err error
	s.closeOnce.Do(func() { err = s.decoded.Close() })
	return err
}

// decode picks a decoder by file extension.
func decode(rc io.ReadCloser, path string) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		s, f, err = mp3.Decode(rc)
	case ".wav":
		s, f, err = wav.Decode(rc)
	case ".ogg":
		s, f, err = vorbis.Decode(rc)
	case ".flac":
		s, f, err = flac.Decode(rc)
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported sound format %q", ext)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return s, f, nil
}

// gainToExponent maps a linear gain in [0,1] to an effects.Volume exponent
// with base 2. Gains at or below the audible floor are silent.
func gainToExponent(gain float64) (exponent float64, silent bool) {
	gain = clamp01(gain)
	if gain == 0 {
		return MinVolumeExponent, true
	}
	exp := math.Log2(gain)
	if exp < MinVolumeExponent {
		return MinVolumeExponent, true
	}
	return exp, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
