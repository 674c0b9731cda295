package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_VideoStateChanged(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"video_state_changed","roomId":"ABC123","displayName":"Fox","videoState":{"action":"volume","value":42}}`))
	require.NoError(t, err)

	assert.Equal(t, KindVideoStateChanged, env.Kind)
	v, ok := env.VideoState.Number()
	require.True(t, ok)
	assert.Equal(t, 42.0, v)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{"type":`},
		{"missing type", `{"roomId":"ABC123"}`},
		{"missing room", `{"type":"chat","displayName":"a","text":"hi"}`},
		{"chat without text", `{"type":"chat","roomId":"ABC123","displayName":"a"}`},
		{"join without name", `{"type":"join_room","roomId":"ABC123"}`},
		{"seek without value", `{"type":"video_state_changed","roomId":"ABC123","videoState":{"action":"seek"}}`},
		{"unknown action", `{"type":"video_state_changed","roomId":"ABC123","videoState":{"action":"rewind"}}`},
		{"video changed without url", `{"type":"video_changed","roomId":"ABC123","displayName":"a"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tc.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedEnvelope))
		})
	}
}

func TestDecodeEnvelope_UnknownKindAccepted(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"reaction","roomId":"ABC123","emoji":"+1"}`))
	require.NoError(t, err)
	assert.False(t, env.Kind.Known())
}

func TestVideoStateChange_Values(t *testing.T) {
	play := NewStateChange(ActionPlay)
	assert.False(t, play.HasValue())

	speed := NewNumberChange(ActionSpeed, 1.5)
	f, ok := speed.Number()
	require.True(t, ok)
	assert.Equal(t, 1.5, f)

	quality := NewStringChange(ActionQuality, "1080p")
	s, ok := quality.Label()
	require.True(t, ok)
	assert.Equal(t, "1080p", s)
	_, ok = quality.Number()
	assert.False(t, ok)

	numeric := NewStringChange(ActionSeek, "90")
	f, ok = numeric.Number()
	require.True(t, ok)
	assert.Equal(t, 90.0, f)
}

func TestEnvelope_EncodeOmitsEmpty(t *testing.T) {
	env := &Envelope{Kind: KindChat, RoomID: "ABC123", DisplayName: "Fox", Text: "hi"}
	raw, err := env.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat","roomId":"ABC123","displayName":"Fox","text":"hi"}`, string(raw))
}
