package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket connection to the PC peer.
type Client interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection.
	Close() error

	// Send writes raw bytes to the connection as a text frame.
	Send(data []byte) error

	// Messages returns a channel of inbound text frames, each stamped with
	// the local receive time.
	Messages() <-chan TimestampedMessage

	// Errors returns a channel carrying the error that ended the connection.
	// A close initiated by the peer is reported as ErrPeerClosed. Every frame
	// read before the failure is already on Messages when the error is sent.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// ClientFactory builds a Client for one session.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

// phase is the lifecycle position of a client. Clients are single use.
type phase int

const (
	phaseIdle phase = iota
	phaseOpen
	phaseDropped // read side failed, not yet closed
	phaseClosed
)

type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	writeMu sync.Mutex // one data writer at a time; WriteControl is concurrency safe

	mu         sync.RWMutex
	conn       *websocket.Conn
	phase      phase
	lastSeenAt time.Time
}

// NewClient creates a new WebSocket client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultClientConfig().BufferSize
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}

	return &client{
		cfg:      cfg,
		logger:   logger.With("url", cfg.URL),
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials and upgrades. It may be called once.
func (c *client) Connect(ctx context.Context) error {
	if c.currentPhase() == phaseClosed {
		return ErrAlreadyClosed
	}

	header := http.Header{}
	if c.cfg.UserAgent != "" {
		header.Set("User-Agent", c.cfg.UserAgent)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: %s", ErrHandshake, resp.Status)
		}
		return fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(c.cfg.ReadLimit)

	c.mu.Lock()
	if c.phase == phaseClosed {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.phase = phaseOpen
	c.lastSeenAt = time.Now()
	c.mu.Unlock()

	// Any inbound frame, control frames included, proves the link is alive
	conn.SetPingHandler(func(data string) error {
		c.touch()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop(conn)
	go c.heartbeatLoop(conn)

	c.logger.Debug("websocket connected")
	return nil
}

// Close sends a normal close frame and releases the socket. Safe to call twice.
func (c *client) Close() error {
	c.mu.Lock()
	if c.phase == phaseClosed {
		c.mu.Unlock()
		return nil
	}
	c.phase = phaseClosed
	conn := c.conn
	c.mu.Unlock()

	close(c.done)

	if conn == nil {
		return nil
	}

	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

// Send writes data as one text frame.
func (c *client) Send(data []byte) error {
	c.mu.RLock()
	conn, open := c.conn, c.phase == phaseOpen
	c.mu.RUnlock()
	if !open {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(c.writeDeadline())
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) Messages() <-chan TimestampedMessage {
	return c.messages
}

func (c *client) Errors() <-chan error {
	return c.errors
}

func (c *client) IsConnected() bool {
	return c.currentPhase() == phaseOpen
}

func (c *client) currentPhase() phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// writeDeadline returns the zero time (no deadline) when WriteTimeout is unset.
func (c *client) writeDeadline() time.Time {
	if c.cfg.WriteTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.cfg.WriteTimeout)
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastSeenAt = time.Now()
	c.mu.Unlock()
}

func (c *client) sinceLastSeen() (time.Time, time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeenAt, time.Since(c.lastSeenAt)
}

// report delivers err unless one is already queued or the client is closed.
func (c *client) report(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.errors <- err:
	default:
	}
}

// readLoop forwards text frames until the socket fails.
func (c *client) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			c.mu.Lock()
			if c.phase == phaseOpen {
				c.phase = phaseDropped
			}
			c.mu.Unlock()
			c.report(classifyReadError(err))
			return
		}
		c.touch()

		if msgType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", "type", msgType, "size", len(data))
			continue
		}

		select {
		case c.messages <- TimestampedMessage{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		default:
			c.logger.Warn("message buffer full, dropping message", "size", len(data))
		}
	}
}

// classifyReadError maps a close frame from the peer onto ErrPeerClosed.
func classifyReadError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return fmt.Errorf("%w: %d %s", ErrPeerClosed, closeErr.Code, closeErr.Text)
	}
	return err
}

// heartbeatLoop sends the heartbeat frame and a control ping every
// PingInterval, and reports ErrStaleConnection once nothing has arrived for
// PingTimeout.
func (c *client) heartbeatLoop(conn *websocket.Conn) {
	if c.cfg.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.beat(conn)

		if c.cfg.PingTimeout <= 0 {
			continue
		}
		lastSeen, silent := c.sinceLastSeen()
		if silent > c.cfg.PingTimeout {
			c.logger.Warn("no traffic received, connection stale",
				"last_seen", lastSeen,
				"timeout", c.cfg.PingTimeout,
			)
			c.report(ErrStaleConnection)
			return
		}
	}
}

func (c *client) beat(conn *websocket.Conn) {
	if c.cfg.Heartbeat != nil {
		if err := c.Send(c.cfg.Heartbeat); err != nil {
			c.logger.Debug("failed to send heartbeat", "error", err)
		}
	}

	if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), c.writeDeadline()); err != nil {
		c.logger.Debug("failed to send ping", "error", err)
	}
}
