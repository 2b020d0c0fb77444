package peer

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/padlink/internal/backoff"
	"github.com/rickgao/padlink/internal/connection"
	"github.com/rickgao/padlink/internal/input"
	"github.com/rickgao/padlink/internal/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testPeer struct {
	srv  *Server
	ts   *httptest.Server
	host string
	port int
}

func newTestPeer(t *testing.T, cfg Config) *testPeer {
	t.Helper()

	srv := NewServer(cfg, discardLogger())
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.closeAll()
		ts.Close()
	})

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return &testPeer{srv: srv, ts: ts, host: u.Hostname(), port: port}
}

func (p *testPeer) url() string {
	return "ws://" + p.host + ":" + strconv.Itoa(p.port)
}

// open connects a raw client.
func (p *testPeer) open(t *testing.T) connection.Client {
	t.Helper()

	cfg := connection.DefaultClientConfig()
	cfg.URL = p.url()
	cfg.PingInterval = 0

	c := connection.NewClient(cfg, discardLogger())
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c
}

// dial opens a raw client and returns it with its first inbound message.
func (p *testPeer) dial(t *testing.T) (connection.Client, protocol.Inbound) {
	t.Helper()
	c := p.open(t)
	return c, nextInbound(t, c)
}

func nextInbound(t *testing.T, c connection.Client) protocol.Inbound {
	t.Helper()
	select {
	case msg := <-c.Messages():
		return protocol.Decode(msg.Data)
	case err := <-c.Errors():
		t.Fatalf("connection error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
	return nil
}

func send(t *testing.T, c connection.Client, msg protocol.Outbound) {
	t.Helper()
	data, err := protocol.Encode(msg)
	require.NoError(t, err)
	require.NoError(t, c.Send(data))
}

func testManagerConfig() connection.ManagerConfig {
	cfg := connection.DefaultManagerConfig()
	cfg.Reconnect = backoff.Policy{Initial: 20 * time.Millisecond, Max: 100 * time.Millisecond, Multiplier: 2}
	cfg.MaxInputRate = 0
	cfg.Client.PingInterval = 0
	return cfg
}

func waitState(t *testing.T, m connection.Manager, want connection.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.State() == want
	}, 3*time.Second, 5*time.Millisecond, "state never became %v", want)
}

func TestServer_AssignsLowestFreeSlot(t *testing.T) {
	p := newTestPeer(t, Config{MaxPlayers: 4})

	_, first := p.dial(t)
	second, secondWelcome := p.dial(t)
	_, third := p.dial(t)

	assert.Equal(t, protocol.Connected{PlayerID: 1}, first)
	assert.Equal(t, protocol.Connected{PlayerID: 2}, secondWelcome)
	assert.Equal(t, protocol.Connected{PlayerID: 3}, third)

	send(t, second, protocol.Disconnect{})
	require.Eventually(t, func() bool { return len(p.srv.Players()) == 2 }, 2*time.Second, 5*time.Millisecond)

	_, again := p.dial(t)
	assert.Equal(t, protocol.Connected{PlayerID: 2}, again)

	ids := []int{}
	for _, pl := range p.srv.Players() {
		ids = append(ids, pl.ID)
	}
	assert.Equal(t, []int{1, 2, 3}, ids)
}

func TestServer_Full(t *testing.T) {
	p := newTestPeer(t, Config{MaxPlayers: 1})

	_, welcome := p.dial(t)
	assert.Equal(t, protocol.Connected{PlayerID: 1}, welcome)

	rejected := p.open(t)

	var msg protocol.Inbound
	var closeErr error
	timeout := time.After(2 * time.Second)
	for msg == nil || closeErr == nil {
		select {
		case m := <-rejected.Messages():
			msg = protocol.Decode(m.Data)
		case err := <-rejected.Errors():
			closeErr = err
		case <-timeout:
			t.Fatalf("rejection incomplete: message %v, error %v", msg, closeErr)
		}
	}

	assert.Equal(t, protocol.Error{Message: "Server is full (max 1 players)"}, msg)
	assert.ErrorIs(t, closeErr, connection.ErrPeerClosed)
	assert.Len(t, p.srv.Players(), 1)
}

func TestServer_PingPong(t *testing.T) {
	p := newTestPeer(t, DefaultConfig())

	c, _ := p.dial(t)
	send(t, c, protocol.Ping{})
	assert.Equal(t, protocol.Pong{}, nextInbound(t, c))
}

func TestServer_HandlerSeesMessages(t *testing.T) {
	var mu sync.Mutex
	var got []protocol.Outbound

	cfg := DefaultConfig()
	cfg.Handler = func(playerID int, msg protocol.Outbound) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, playerID)
		got = append(got, msg)
	}
	p := newTestPeer(t, cfg)

	c, _ := p.dial(t)
	send(t, c, protocol.MouseMove{DX: 3, DY: -1})
	send(t, c, protocol.KeyboardCombo{Keys: []protocol.Key{"ctrl", "c"}})
	c.Send([]byte("not json"))
	send(t, c, protocol.MouseScroll{DY: -2})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, protocol.MouseMove{DX: 3, DY: -1}, got[0])
	assert.Equal(t, protocol.KeyboardCombo{Keys: []protocol.Key{"ctrl", "c"}}, got[1])
	assert.Equal(t, protocol.MouseScroll{DY: -2}, got[2])

	pl, ok := p.srv.Player(1)
	require.True(t, ok)
	assert.EqualValues(t, 3, pl.Messages)
}

func TestManager_EndToEnd(t *testing.T) {
	p := newTestPeer(t, DefaultConfig())

	m := connection.NewManager(testManagerConfig(), discardLogger())
	defer m.Close()

	require.NoError(t, m.Connect(p.host, p.port))
	waitState(t, m, connection.Connected{PlayerID: 1})

	snap := input.Snapshot{A: true, DPadUp: true, LT: 0.5, LeftX: -0.25, RightY: 1}
	m.SendInput(snap)

	require.Eventually(t, func() bool {
		pl, ok := p.srv.Player(1)
		return ok && pl.LastInput == snap
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.SendRaw(protocol.KeyboardType{Text: "gg"}))

	m.Disconnect()
	assert.Equal(t, connection.Disconnected{}, m.State())
	require.Eventually(t, func() bool { return len(p.srv.Players()) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestManager_ReconnectsAfterPeerClose(t *testing.T) {
	p := newTestPeer(t, DefaultConfig())

	m := connection.NewManager(testManagerConfig(), discardLogger())
	defer m.Close()

	require.NoError(t, m.Connect(p.host, p.port))
	waitState(t, m, connection.Connected{PlayerID: 1})

	require.True(t, p.srv.Kick(1))
	assert.False(t, p.srv.Kick(9))

	require.Eventually(t, func() bool {
		_, connected := m.State().(connection.Connected)
		return connected && m.Stats().Sessions >= 2
	}, 3*time.Second, 5*time.Millisecond)
}

func TestManager_RetriesWhilePeerDown(t *testing.T) {
	// Reserve a port, then close it so dials are refused
	ts := httptest.NewUnstartedServer(NewServer(DefaultConfig(), discardLogger()))
	u, err := url.Parse("http://" + ts.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	ts.Listener.Close()

	cfg := testManagerConfig()
	cfg.Reconnect = backoff.Policy{Initial: time.Minute, Max: time.Minute, Multiplier: 2}
	m := connection.NewManager(cfg, discardLogger())
	defer m.Close()

	require.NoError(t, m.Connect(u.Hostname(), port))

	waitState(t, m, connection.Reconnecting{Attempt: 1, Delay: time.Minute})

	m.CancelReconnect()
	assert.Equal(t, connection.Disconnected{}, m.State())
}
