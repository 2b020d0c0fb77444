package connection

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/padlink/internal/backoff"
	"github.com/rickgao/padlink/internal/conflate"
	"github.com/rickgao/padlink/internal/version"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no traffic)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrPeerClosed      = errors.New("peer closed connection")
	ErrInvalidTarget   = errors.New("invalid target")
	ErrManagerClosed   = errors.New("manager closed")
	ErrHandshake       = errors.New("websocket handshake rejected")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., ws://192.168.1.5:8765)
	UserAgent        string        // Sent as the User-Agent header on the handshake
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	PingInterval     time.Duration // Heartbeat period (0 = no heartbeat)
	PingTimeout      time.Duration // Max time without inbound traffic before stale (0 = never)
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
	Heartbeat        []byte        // Application frame sent with each heartbeat (nil = control ping only)
	ReadLimit        int64         // Largest inbound frame accepted (0 = DefaultReadLimit)
}

// DefaultReadLimit bounds inbound frames. Peer replies are a few dozen bytes.
const DefaultReadLimit = 64 << 10

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		UserAgent:        version.UserAgent(),
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     15 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       64,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Reconnect     backoff.Policy // Retry delay progression
	AutoReconnect bool           // Retry after failures and peer closes
	MaxInputRate  float64        // Input frames per second (0 = unlimited)
	Client        ClientConfig   // Template for each session; URL is filled per target
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Reconnect:     backoff.DefaultPolicy(),
		AutoReconnect: true,
		MaxInputRate:  120,
		Client:        DefaultClientConfig(),
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State      State
	Session    uuid.UUID // Current session, uuid.Nil when none
	Sessions   int64 // Sessions started (initial connects + retries)
	FramesSent int64 // Input frames written
	SendErrors int64 // Failed input writes
	LastPongAt time.Time
	Input      conflate.Stats
}
