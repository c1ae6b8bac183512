package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muezzin/internal/fault"
	"github.com/roach88/muezzin/internal/prayer"
)

// withMecca stores a location whose five prayers all fall inside one UTC day.
func withMecca(t *testing.T, cfg string, extra ...[]string) {
	t.Helper()
	sets := append([][]string{
		{"latitude", "21.4225"},
		{"longitude", "39.8262"},
	}, extra...)
	for _, kv := range sets {
		_, err := execute(t, cfg, "prefs", "set", kv[0], kv[1])
		require.NoError(t, err)
	}
}

func TestTimesJSON(t *testing.T) {
	cfg := writeConfig(t)
	withMecca(t, cfg, []string{"maghrib_sound_enabled", "false"})

	out, err := execute(t, cfg, "--format", "json", "times", "--date", "2024-03-10")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   TimesView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "2024-03-10", resp.Data.Date)
	assert.InDelta(t, 21.4225, resp.Data.Latitude, 1e-9)

	require.Len(t, resp.Data.Times, len(prayer.All))
	for i, p := range prayer.All {
		e := resp.Data.Times[i]
		assert.Equal(t, p.String(), e.Prayer)
		assert.Equal(t, p != prayer.Maghrib, e.SoundEnabled, e.Prayer)
		assert.Equal(t, "2024-03-10", e.At.UTC().Format(time.DateOnly), e.Prayer)
		if i > 0 {
			assert.True(t, e.At.After(resp.Data.Times[i-1].At), "%s after %s", e.Prayer, resp.Data.Times[i-1].Prayer)
		}
	}
}

func TestTimesText(t *testing.T) {
	cfg := writeConfig(t)
	withMecca(t, cfg, []string{"isha_sound_enabled", "false"})

	out, err := execute(t, cfg, "times", "--date", "2024-03-10")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-03-10")
	assert.Contains(t, out, "Fajr")
	assert.Regexp(t, `Isha +\d\d:\d\d  \(silent\)`, out)
}

func TestTimesInvalidDate(t *testing.T) {
	cfg := writeConfig(t)
	withMecca(t, cfg)

	_, err := execute(t, cfg, "times", "--date", "10/03/2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want YYYY-MM-DD")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTimesWithoutLocation(t *testing.T) {
	_, err := execute(t, writeConfig(t), "times")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, fault.IsConfigurationMissing(err))
}

func TestNextSkipsToTomorrowsFajr(t *testing.T) {
	cfg := writeConfig(t)
	withMecca(t, cfg)

	out, err := execute(t, cfg, "--format", "json", "next", "--at", "2024-03-10T23:50")
	require.NoError(t, err)

	var resp struct {
		Data NextView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "Fajr", resp.Data.Prayer)
	assert.Equal(t, "2024-03-11", resp.Data.At.UTC().Format(time.DateOnly))
	assert.Equal(t, "fajr", resp.Data.Sound)
	assert.False(t, resp.Data.IsIsha)
	assert.Positive(t, resp.Data.In)
}

func TestNextSkipsSilencedPrayers(t *testing.T) {
	cfg := writeConfig(t)
	withMecca(t, cfg,
		[]string{"fajr_sound_enabled", "false"},
		[]string{"dhuhr_sound_enabled", "false"},
		[]string{"asr_sound_enabled", "false"},
		[]string{"selected_adhan", "Mishary Rashid Alafasy"},
	)

	out, err := execute(t, cfg, "--format", "json", "next", "--at", "2024-03-10T00:00")
	require.NoError(t, err)

	var resp struct {
		Data NextView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "Maghrib", resp.Data.Prayer)
	assert.Equal(t, "Mishary Rashid Alafasy", resp.Data.Sound)
}

func TestNextEverythingSilenced(t *testing.T) {
	cfg := writeConfig(t)
	var silenced [][]string
	for _, p := range prayer.All {
		silenced = append(silenced, []string{p.Key() + "_sound_enabled", "false"})
	}
	withMecca(t, cfg, silenced...)

	out, err := execute(t, cfg, "next", "--at", "2024-03-10T12:00")
	require.NoError(t, err)
	assert.Equal(t, "Every prayer in the next 2 days is silenced.\n", out)
}
