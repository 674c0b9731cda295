package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"watchsync/internal/client/playback"
	"watchsync/internal/core/domain"
)

type discardPublisher struct{ sent []*domain.Envelope }

func (p *discardPublisher) Publish(env *domain.Envelope) error {
	p.sent = append(p.sent, env)
	return nil
}

func TestParseCode(t *testing.T) {
	code, err := parseCode(" abc123 ")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomCode("ABC123"), code)

	_, err = parseCode("abc-12")
	assert.Error(t, err)
}

func TestHandleInput(t *testing.T) {
	var out bytes.Buffer
	pub := &discardPublisher{}
	engine := playback.NewEngine(playback.NewMemoryPlayer(), pub, playback.Hooks{}, zap.NewNop().Sugar())
	engine.SetIdentity("ABC123", "alice")

	assert.False(t, handleInput(&out, engine, "hello"))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, domain.KindChat, pub.sent[0].Kind)

	assert.False(t, handleInput(&out, engine, "/load https://youtu.be/dQw4w9WgXcQ"))
	assert.Equal(t, "dQw4w9WgXcQ", engine.State().VideoID)

	assert.False(t, handleInput(&out, engine, "/state"))
	assert.Contains(t, out.String(), "video=dQw4w9WgXcQ")

	assert.False(t, handleInput(&out, engine, "/bogus"))
	assert.Contains(t, out.String(), "unknown command /bogus")

	assert.True(t, handleInput(&out, engine, "/quit"))
}

func TestPrintLine(t *testing.T) {
	var out bytes.Buffer
	printLine(&out, playback.Line{Kind: playback.LineChat, DisplayName: "bob", Text: "hi"})
	printLine(&out, playback.Line{Kind: playback.LineSystem, Text: "bob joined the room"})
	assert.Equal(t, "<bob> hi\n-- bob joined the room\n", out.String())
}
