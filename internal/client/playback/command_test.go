package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchsync/internal/core/domain"
)

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand("speed 1.5")
	require.True(t, ok)
	assert.Equal(t, domain.ActionSpeed, cmd.Name)
	assert.Equal(t, []string{"1.5"}, cmd.Args)

	cmd, ok = ParseCommand("  PLAY  ")
	require.True(t, ok)
	assert.Equal(t, domain.ActionPlay, cmd.Name)
	assert.Empty(t, cmd.Args)

	cmd, ok = ParseCommand("Seek   90   now")
	require.True(t, ok)
	assert.Equal(t, domain.ActionSeek, cmd.Name)
	assert.Equal(t, []string{"90", "now"}, cmd.Args)

	for _, text := range []string{"playlist please", "let's play", "hello", ""} {
		_, ok := ParseCommand(text)
		assert.False(t, ok, text)
	}
}

func TestCommandStateChange(t *testing.T) {
	tests := []struct {
		text   string
		action domain.Action
		value  string
		line   string
	}{
		{"play", domain.ActionPlay, "", "Video playing"},
		{"pause", domain.ActionPause, "", "Video paused"},
		{"seek 90", domain.ActionSeek, "90", "Video jumped to 90 seconds"},
		{"seek 42abc", domain.ActionSeek, "42", "Video jumped to 42 seconds"},
		{"speed 1.5", domain.ActionSpeed, "1.5", "Playback speed set to 1.5x"},
		{"speed 2", domain.ActionSpeed, "2", "Playback speed set to 2x"},
		{"volume 42", domain.ActionVolume, "42", "Volume set to 42%"},
		{"quality 720p", domain.ActionQuality, `"720p"`, "Video quality changed to 720p"},
		{"fullscreen", domain.ActionFullscreen, "", "Fullscreen entered"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, ok := ParseCommand(tt.text)
			require.True(t, ok)
			change, line, err := cmd.StateChange(false)
			require.NoError(t, err)
			assert.Equal(t, tt.action, change.Action)
			assert.Equal(t, tt.value, string(change.Value))
			assert.Equal(t, tt.line, line)
		})
	}
}

func TestCommandStateChange_FullscreenExit(t *testing.T) {
	cmd, _ := ParseCommand("fullscreen")
	_, line, err := cmd.StateChange(true)
	require.NoError(t, err)
	assert.Equal(t, "Fullscreen exited", line)
}

func TestCommandStateChange_InvalidArgs(t *testing.T) {
	for _, text := range []string{"seek", "seek abc", "speed 3", "speed 0.1", "speed fast", "volume 101", "volume -1", "quality"} {
		cmd, ok := ParseCommand(text)
		require.True(t, ok, text)
		_, _, err := cmd.StateChange(false)
		assert.ErrorIs(t, err, domain.ErrInvalidCommand, text)
	}
}

func TestParseLeadingNumbers(t *testing.T) {
	n, ok := parseLeadingInt("15s")
	assert.True(t, ok)
	assert.Equal(t, 15, n)

	_, ok = parseLeadingInt("x15")
	assert.False(t, ok)

	f, ok := parseLeadingFloat(".5")
	assert.True(t, ok)
	assert.Equal(t, 0.5, f)

	f, ok = parseLeadingFloat("1.25x")
	assert.True(t, ok)
	assert.Equal(t, 1.25, f)
}
