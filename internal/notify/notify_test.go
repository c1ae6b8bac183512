package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muezzin/internal/prayer"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	err := sink.Emit(context.Background(), Intent{Kind: KindLaunchPlayer, Prayer: prayer.Maghrib, SessionID: "s1"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "component=notify")
	assert.Contains(t, out, "kind=launch_player")
	assert.Contains(t, out, "prayer=Maghrib")
	assert.Contains(t, out, "session=s1")
	assert.NotContains(t, out, "sound=")
}

func TestMultiSinkCallsEverySink(t *testing.T) {
	var got []Kind
	record := SinkFunc(func(_ context.Context, in Intent) error {
		got = append(got, in.Kind)
		return nil
	})
	boom := errors.New("boom")
	failing := SinkFunc(func(context.Context, Intent) error { return boom })

	m := MultiSink{failing, nil, record, Discard}
	err := m.Emit(context.Background(), Intent{Kind: KindDismissAlert})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []Kind{KindDismissAlert}, got)
}

func TestMultiSinkEmpty(t *testing.T) {
	assert.NoError(t, MultiSink{}.Emit(context.Background(), Intent{Kind: KindSilentReminder}))
}
