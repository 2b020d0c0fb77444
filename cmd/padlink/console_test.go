package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/padlink/internal/input"
	"github.com/rickgao/padlink/internal/protocol"
)

func TestConsole_Buttons(t *testing.T) {
	c := newConsole(0)

	act, err := c.Apply("press A")
	require.NoError(t, err)
	assert.True(t, act.snapshot)
	assert.True(t, c.Snapshot().A)

	_, err = c.Apply("press up")
	require.NoError(t, err)
	assert.True(t, c.Snapshot().DPadUp)

	_, err = c.Apply("release a")
	require.NoError(t, err)
	assert.False(t, c.Snapshot().A)
	assert.True(t, c.Snapshot().DPadUp)

	_, err = c.Apply("neutral")
	require.NoError(t, err)
	assert.True(t, c.Snapshot().IsNeutral())
}

func TestConsole_SticksAndTriggers(t *testing.T) {
	c := newConsole(0.2)

	_, err := c.Apply("stick left 0.1 0.1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Snapshot().LeftX, "inside deadzone")
	assert.Equal(t, 0.0, c.Snapshot().LeftY)

	_, err = c.Apply("stick right 1 0")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c.Snapshot().RightX, 1e-9)

	_, err = c.Apply("trigger rt 3")
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.Snapshot().RT, "clamped")
}

func TestConsole_Text(t *testing.T) {
	c := newConsole(0)

	act, err := c.Apply("text hello world")
	require.NoError(t, err)
	assert.Equal(t, []protocol.Outbound{protocol.KeyboardType{Text: "hello world"}}, act.messages)

	act, err = c.Apply("text hello there")
	require.NoError(t, err)
	want := []protocol.Outbound{
		protocol.KeyboardKey{Key: protocol.KeyBackspace},
		protocol.KeyboardKey{Key: protocol.KeyBackspace},
		protocol.KeyboardKey{Key: protocol.KeyBackspace},
		protocol.KeyboardKey{Key: protocol.KeyBackspace},
		protocol.KeyboardKey{Key: protocol.KeyBackspace},
		protocol.KeyboardType{Text: "there"},
	}
	assert.Equal(t, want, act.messages)

	act, err = c.Apply("text hello there")
	require.NoError(t, err)
	assert.Empty(t, act.messages)
}

func TestConsole_Messages(t *testing.T) {
	tests := []struct {
		line string
		want protocol.Outbound
	}{
		{"key Enter", protocol.KeyboardKey{Key: protocol.KeyEnter}},
		{"combo ctrl c", protocol.KeyboardCombo{Keys: []protocol.Key{protocol.KeyCtrl, "c"}}},
		{"move 4 -2.5", protocol.MouseMove{DX: 4, DY: -2.5}},
		{"scroll 0 -3", protocol.MouseScroll{DX: 0, DY: -3}},
		{"click", protocol.MouseClick{Button: protocol.MouseLeft}},
		{"click right", protocol.MouseClick{Button: protocol.MouseRight}},
		{"press-mouse middle", protocol.MousePress{Button: protocol.MouseMiddle}},
		{"release-mouse left", protocol.MouseRelease{Button: protocol.MouseLeft}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			act, err := newConsole(0).Apply(tt.line)
			require.NoError(t, err)
			assert.False(t, act.snapshot)
			assert.Equal(t, []protocol.Outbound{tt.want}, act.messages)
		})
	}
}

func TestConsole_Controls(t *testing.T) {
	tests := map[string]string{
		"status":     controlStatus,
		"disconnect": controlDisconnect,
		"reconnect":  controlReconnect,
		"cancel":     controlCancel,
		"auto on":    controlAutoOn,
		"auto OFF":   controlAutoOff,
		"quit":       controlQuit,
		"exit":       controlQuit,
	}

	for line, want := range tests {
		act, err := newConsole(0).Apply(line)
		require.NoError(t, err, line)
		assert.Equal(t, want, act.control, line)
	}
}

func TestConsole_Errors(t *testing.T) {
	c := newConsole(0)

	for _, line := range []string{
		"press",
		"press z",
		"stick middle 0 0",
		"stick left x 0",
		"trigger lt",
		"trigger zt 1",
		"move 1",
		"scroll 1.5 0",
		"click thumb",
		"combo ctrl",
		"auto maybe",
	} {
		_, err := c.Apply(line)
		assert.ErrorIs(t, err, ErrBadArguments, line)
	}

	_, err := c.Apply("jump")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	// Failed commands leave the state alone
	assert.Equal(t, input.Snapshot{}, c.Snapshot())
}

func TestConsole_BlankAndComments(t *testing.T) {
	c := newConsole(0)
	for _, line := range []string{"", "   ", "# press a"} {
		act, err := c.Apply(line)
		require.NoError(t, err)
		assert.Equal(t, action{}, act)
	}
}
