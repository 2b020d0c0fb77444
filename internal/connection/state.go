package connection

import (
	"fmt"
	"time"
)

// State is the observable connection state. Exactly one variant is current.
type State interface {
	isState()
	String() string
}

// Disconnected is the idle state: no socket and no pending retry.
type Disconnected struct{}

// Connecting means a socket is being opened or is open and awaiting the
// handshake.
type Connecting struct{}

// Connected means the peer confirmed the session and assigned a player slot.
type Connected struct {
	PlayerID int
}

// Reconnecting means a retry is scheduled after Delay.
type Reconnecting struct {
	Attempt int
	Delay   time.Duration
}

// Error carries a human-readable failure description.
type Error struct {
	Message string
}

func (Disconnected) isState() {}
func (Connecting) isState()   {}
func (Connected) isState()    {}
func (Reconnecting) isState() {}
func (Error) isState()        {}

func (Disconnected) String() string { return "disconnected" }
func (Connecting) String() string   { return "connecting" }

func (s Connected) String() string {
	return fmt.Sprintf("connected as player %d", s.PlayerID)
}

func (s Reconnecting) String() string {
	return fmt.Sprintf("reconnecting (attempt %d, retry in %s)", s.Attempt, s.Delay)
}

func (s Error) String() string {
	return "error: " + s.Message
}

// Name returns a stable lower-case label for s, suitable for logs and storage.
func Name(s State) string {
	switch s.(type) {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// IsActive reports whether s has, or is opening, a socket.
func IsActive(s State) bool {
	switch s.(type) {
	case Connecting, Connected:
		return true
	}
	return false
}
