package protocol

import (
	"errors"

	"github.com/rickgao/padlink/internal/input"
)

// Errors
var (
	ErrUnsupportedMessage = errors.New("unsupported message")
	ErrMalformed          = errors.New("malformed message")
)

// DefaultPlayerID is assumed when a "connected" frame carries no usable player id.
const DefaultPlayerID = 1

// DefaultErrorMessage is used when an "error" frame carries no message.
const DefaultErrorMessage = "Unknown error"

// Message type discriminators.
const (
	TypeInput      = "input"
	TypeMouse      = "mouse"
	TypeKeyboard   = "keyboard"
	TypePing       = "ping"
	TypeDisconnect = "disconnect"
	TypeConnected  = "connected"
	TypeError      = "error"
	TypePong       = "pong"
)

// Mouse and keyboard actions.
const (
	ActionMove    = "move"
	ActionClick   = "click"
	ActionPress   = "press"
	ActionRelease = "release"
	ActionScroll  = "scroll"
	ActionType    = "type"
	ActionKey     = "key"
	ActionCombo   = "combo"
)

// MouseButton names a mouse button on the wire.
type MouseButton string

const (
	MouseLeft   MouseButton = "left"
	MouseRight  MouseButton = "right"
	MouseMiddle MouseButton = "middle"
)

// Key names a special key on the wire. Single characters are also accepted by the peer.
type Key string

const (
	KeyBackspace Key = "backspace"
	KeyEnter     Key = "enter"
	KeySpace     Key = "space"
	KeyTab       Key = "tab"
	KeyEscape    Key = "escape"
	KeyUp        Key = "up"
	KeyDown      Key = "down"
	KeyLeft      Key = "left"
	KeyRight     Key = "right"
	KeyCtrl      Key = "ctrl"
	KeyAlt       Key = "alt"
	KeyShift     Key = "shift"
	KeyDelete    Key = "delete"
	KeyHome      Key = "home"
	KeyEnd       Key = "end"
	KeyPageUp    Key = "pageup"
	KeyPageDown  Key = "pagedown"
)

// Outbound is a message sent from the handheld to the peer.
type Outbound interface {
	outbound()
}

// Input carries a full gamepad snapshot for a player.
type Input struct {
	PlayerID int
	Snapshot input.Snapshot
}

// MouseMove is a raw touch delta in screen pixels.
type MouseMove struct {
	DX float64
	DY float64
}

// MouseClick is a full press and release of a button.
type MouseClick struct {
	Button MouseButton
}

// MousePress holds a button down until a matching MouseRelease.
type MousePress struct {
	Button MouseButton
}

// MouseRelease lets go of a button held by MousePress.
type MouseRelease struct {
	Button MouseButton
}

// MouseScroll scrolls by whole steps.
type MouseScroll struct {
	DX int
	DY int
}

// KeyboardType types text, normally the delta since the last edit.
type KeyboardType struct {
	Text string
}

// KeyboardKey presses and releases one key.
type KeyboardKey struct {
	Key Key
}

// KeyboardCombo presses the keys in order and releases them in reverse.
type KeyboardCombo struct {
	Keys []Key
}

// Ping asks the peer for a Pong.
type Ping struct{}

// Disconnect tells the peer the player is leaving.
type Disconnect struct{}

func (Input) outbound()         {}
func (MouseMove) outbound()     {}
func (MouseClick) outbound()    {}
func (MousePress) outbound()    {}
func (MouseRelease) outbound()  {}
func (MouseScroll) outbound()   {}
func (KeyboardType) outbound()  {}
func (KeyboardKey) outbound()   {}
func (KeyboardCombo) outbound() {}
func (Ping) outbound()          {}
func (Disconnect) outbound()    {}

// Inbound is a message received from the peer.
type Inbound interface {
	inbound()
}

// Connected confirms the handshake and assigns a player slot.
type Connected struct {
	PlayerID int
}

// Error is a notice from the peer. It does not close the connection by itself.
type Error struct {
	Message string
}

// Pong answers a Ping.
type Pong struct{}

// Unknown is any frame this client does not understand.
type Unknown struct {
	Type string // Raw type field, empty if missing or unparsable
}

func (Connected) inbound() {}
func (Error) inbound()     {}
func (Pong) inbound()      {}
func (Unknown) inbound()   {}
