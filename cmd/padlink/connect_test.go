package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/padlink/internal/config"
	"github.com/rickgao/padlink/internal/pairing"
	"github.com/rickgao/padlink/internal/peer"
	"github.com/rickgao/padlink/internal/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ClientConfig
		opts    connectOptions
		want    pairing.Target
		wantErr bool
	}{
		{
			name: "nothing given",
			want: pairing.Target{},
		},
		{
			name: "config host and port",
			cfg:  config.ClientConfig{Host: "10.0.0.5", Port: 9000},
			want: pairing.Target{Host: "10.0.0.5", Port: 9000},
		},
		{
			name: "flags override config",
			cfg:  config.ClientConfig{Host: "10.0.0.5", Port: 9000},
			opts: connectOptions{Host: "pc.local", Port: 9100},
			want: pairing.Target{Host: "pc.local", Port: 9100},
		},
		{
			name: "default port",
			opts: connectOptions{Host: "pc.local"},
			want: pairing.Target{Host: "pc.local", Port: pairing.DefaultPort},
		},
		{
			name: "pair payload wins",
			cfg:  config.ClientConfig{Host: "10.0.0.5", Port: 9000},
			opts: connectOptions{Host: "pc.local", Pair: `{"type":"xbox_controller","version":1,"host":"192.168.1.20","port":8765,"protocol":"ws"}`},
			want: pairing.Target{Host: "192.168.1.20", Port: 8765},
		},
		{
			name:    "bad payload",
			opts:    connectOptions{Pair: `{"type":"keyboard","version":1,"host":"h","port":1,"protocol":"ws"}`},
			wantErr: true,
		},
		{
			name:    "bad port",
			opts:    connectOptions{Host: "pc.local", Port: 70000},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTarget(tt.cfg, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManagerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Connection.ReconnectInitialDelay = 2 * time.Second
	cfg.Connection.ReconnectMaxDelay = time.Minute
	cfg.Connection.ReconnectMultiplier = 3
	cfg.Connection.PingTimeout = 45 * time.Second
	off := false
	cfg.Client.AutoReconnect = &off
	cfg.Client.MaxInputRate = -1

	mc := managerConfig(cfg)
	assert.Equal(t, 2*time.Second, mc.Reconnect.Initial)
	assert.Equal(t, time.Minute, mc.Reconnect.Max)
	assert.Equal(t, 3.0, mc.Reconnect.Multiplier)
	assert.False(t, mc.AutoReconnect)
	assert.Equal(t, 0.0, mc.MaxInputRate, "negative means unlimited")
	assert.Equal(t, 45*time.Second, mc.Client.PingTimeout)
	assert.Equal(t, cfg.Connection.BufferSize, mc.Client.BufferSize)
	assert.NotEmpty(t, mc.Client.UserAgent)
}

func TestAdvertisedTarget(t *testing.T) {
	got, err := advertisedTarget("127.0.0.1:9000", "")
	require.NoError(t, err)
	assert.Equal(t, pairing.Target{Host: "127.0.0.1", Port: 9000}, got)

	got, err = advertisedTarget(":8765", "gaming-pc.local")
	require.NoError(t, err)
	assert.Equal(t, pairing.Target{Host: "gaming-pc.local", Port: 8765}, got)

	got, err = advertisedTarget("0.0.0.0:8765", "")
	require.NoError(t, err)
	assert.NotEqual(t, "0.0.0.0", got.Host)

	_, err = advertisedTarget("8765", "")
	assert.Error(t, err)
}

func TestPairCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, pairCommand(&out, "ws://192.168.1.20:9000"))
	assert.Contains(t, out.String(), "url:     ws://192.168.1.20:9000")
	assert.Contains(t, out.String(), `"type":"xbox_controller"`)

	assert.Error(t, pairCommand(&out, ""))
}

func TestConnectCommand_NoTarget(t *testing.T) {
	err := connectCommand(context.Background(), config.Default(), connectOptions{}, bytes.NewReader(nil), io.Discard, discardLogger())
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestConnectCommand_EndToEnd(t *testing.T) {
	received := make(chan protocol.Outbound, 16)
	pcfg := peer.DefaultConfig()
	pcfg.Handler = func(_ int, msg protocol.Outbound) {
		select {
		case received <- msg:
		default:
		}
	}
	srv := peer.NewServer(pcfg, discardLogger())
	ts := httptest.NewServer(srv)
	defer ts.Close()

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Client.Host = u.Hostname()
	cfg.Client.Port = port
	cfg.Client.MaxInputRate = -1

	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() {
		done <- connectCommand(context.Background(), cfg, connectOptions{}, pr, io.Discard, discardLogger())
	}()

	// Raw sends fail until the session is open, so keep typing until one lands
	require.Eventually(t, func() bool {
		fmt.Fprintln(pw, "key enter")
		select {
		case msg := <-received:
			return msg == protocol.KeyboardKey{Key: protocol.KeyEnter}
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
	assert.Len(t, srv.Players(), 1)

	fmt.Fprintln(pw, "press a")
	for {
		msg := nextMessage(t, received)
		if in, ok := msg.(protocol.Input); ok && in.Snapshot.A {
			assert.Equal(t, 1, in.PlayerID)
			break
		}
	}

	fmt.Fprintln(pw, "quit")
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("connect did not return after quit")
	}

	require.Eventually(t, func() bool {
		return len(srv.Players()) == 0
	}, 3*time.Second, 5*time.Millisecond)
}

func nextMessage(t *testing.T, ch <-chan protocol.Outbound) protocol.Outbound {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("peer received nothing")
		return nil
	}
}
