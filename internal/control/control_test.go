package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muezzin/internal/prayer"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Action
		wantErr string
	}{
		{"stop", `{"action":"stop"}`, ActionStop, ""},
		{"reschedule", `{"action":"reschedule"}`, ActionReschedule, ""},
		{"permanent interrupt", `{"action":"interrupt","permanent":true}`, ActionInterrupt, ""},
		{"play with prayer", `{"action":"play","prayer":"zuhr","volume":0.5}`, ActionPlay, ""},
		{"missing action", `{}`, "", "missing action"},
		{"unknown action", `{"action":"dance"}`, "", `unknown action "dance"`},
		{"bad prayer", `{"action":"play","prayer":"witr"}`, "", `unknown prayer "witr"`},
		{"bad volume", `{"action":"play","volume":1.5}`, "", "out of range"},
		{"not json", `play`, "", "invalid command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.in))
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrInvalidCommand)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Action)
		})
	}
}

func TestPlayRequest(t *testing.T) {
	v := 0.3
	cmd := Command{Action: ActionPlay, Prayer: "Maghrib", Sound: "makkah", SoundFile: "/tmp/a.mp3", Volume: &v}
	req := cmd.PlayRequest()
	assert.Equal(t, prayer.Maghrib, req.Prayer)
	assert.Equal(t, "makkah", req.Sound)
	assert.Equal(t, "/tmp/a.mp3", req.SoundFile)
	require.NotNil(t, req.Volume)
	assert.Equal(t, 0.3, *req.Volume)

	assert.False(t, Command{Action: ActionPlay}.PlayRequest().Prayer.Valid())
}

func TestActionsAllValidate(t *testing.T) {
	for _, a := range Actions() {
		assert.NoError(t, Command{Action: a}.Validate(), a)
	}
}
