package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rickgao/padlink/internal/input"
	"github.com/rickgao/padlink/internal/protocol"
)

// Errors
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArguments   = errors.New("bad arguments")
)

// Control actions handled by the connect loop instead of being sent.
const (
	controlStatus     = "status"
	controlDisconnect = "disconnect"
	controlReconnect  = "reconnect"
	controlCancel     = "cancel"
	controlAutoOn     = "auto-on"
	controlAutoOff    = "auto-off"
	controlQuit       = "quit"
)

var buttons = map[string]func(s *input.Snapshot, down bool){
	"a":     func(s *input.Snapshot, down bool) { s.A = down },
	"b":     func(s *input.Snapshot, down bool) { s.B = down },
	"x":     func(s *input.Snapshot, down bool) { s.X = down },
	"y":     func(s *input.Snapshot, down bool) { s.Y = down },
	"lb":    func(s *input.Snapshot, down bool) { s.LB = down },
	"rb":    func(s *input.Snapshot, down bool) { s.RB = down },
	"start": func(s *input.Snapshot, down bool) { s.Start = down },
	"back":  func(s *input.Snapshot, down bool) { s.Back = down },
	"guide": func(s *input.Snapshot, down bool) { s.Guide = down },
	"l3":    func(s *input.Snapshot, down bool) { s.L3 = down },
	"r3":    func(s *input.Snapshot, down bool) { s.R3 = down },
	"up":    func(s *input.Snapshot, down bool) { s.DPadUp = down },
	"down":  func(s *input.Snapshot, down bool) { s.DPadDown = down },
	"left":  func(s *input.Snapshot, down bool) { s.DPadLeft = down },
	"right": func(s *input.Snapshot, down bool) { s.DPadRight = down },
}

// action is the outcome of one console line.
type action struct {
	snapshot bool                // The gamepad state changed and should be offered
	messages []protocol.Outbound // Messages to send immediately, in order
	control  string
}

// console turns text commands into gamepad state and raw messages.
//
//	press a | release a      buttons, d-pad (up/down/left/right)
//	stick left 0.5 -1        stick axes, deadzone applied
//	trigger lt 0.8           trigger pull
//	neutral                  release everything
//	text hello               replace the remote text field contents
//	key enter | combo ctrl c keyboard
//	move 4 -2 | click left | press-mouse left | release-mouse left | scroll 0 -3
//	status | disconnect | reconnect | cancel | auto on|off | quit
type console struct {
	snap     input.Snapshot
	text     string
	deadzone float64
}

func newConsole(deadzone float64) *console {
	return &console{deadzone: deadzone}
}

// Snapshot returns the current gamepad state.
func (c *console) Snapshot() input.Snapshot {
	return c.snap
}

// Apply parses one line. Empty lines and # comments yield a zero action.
func (c *console) Apply(line string) (action, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return action{}, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "press", "release":
		if len(args) != 1 {
			return action{}, fmt.Errorf("%w: %s <button>", ErrBadArguments, cmd)
		}
		set, ok := buttons[strings.ToLower(args[0])]
		if !ok {
			return action{}, fmt.Errorf("%w: unknown button %q", ErrBadArguments, args[0])
		}
		set(&c.snap, cmd == "press")
		return action{snapshot: true}, nil

	case "stick":
		if len(args) != 3 {
			return action{}, fmt.Errorf("%w: stick left|right <x> <y>", ErrBadArguments)
		}
		x, y, err := parsePair(args[1], args[2], strconv.ParseFloat)
		if err != nil {
			return action{}, err
		}
		switch strings.ToLower(args[0]) {
		case "left":
			c.snap = c.snap.WithLeftStick(x, y, c.deadzone)
		case "right":
			c.snap = c.snap.WithRightStick(x, y, c.deadzone)
		default:
			return action{}, fmt.Errorf("%w: unknown stick %q", ErrBadArguments, args[0])
		}
		return action{snapshot: true}, nil

	case "trigger":
		if len(args) != 2 {
			return action{}, fmt.Errorf("%w: trigger lt|rt <value>", ErrBadArguments)
		}
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return action{}, fmt.Errorf("%w: %v", ErrBadArguments, err)
		}
		switch strings.ToLower(args[0]) {
		case "lt":
			c.snap.LT = v
		case "rt":
			c.snap.RT = v
		default:
			return action{}, fmt.Errorf("%w: unknown trigger %q", ErrBadArguments, args[0])
		}
		c.snap = c.snap.Clamp()
		return action{snapshot: true}, nil

	case "neutral":
		c.snap = input.Snapshot{}
		return action{snapshot: true}, nil

	case "text":
		// Keep the rest of the line verbatim, including inner spaces
		next := strings.TrimPrefix(strings.TrimLeft(line, " \t"), fields[0])
		next = strings.TrimPrefix(next, " ")
		edit := input.TextDelta(c.text, next)
		c.text = next
		return action{messages: protocol.EditMessages(edit)}, nil

	case "key":
		if len(args) != 1 {
			return action{}, fmt.Errorf("%w: key <name>", ErrBadArguments)
		}
		return action{messages: []protocol.Outbound{protocol.KeyboardKey{Key: protocol.Key(strings.ToLower(args[0]))}}}, nil

	case "combo":
		if len(args) < 2 {
			return action{}, fmt.Errorf("%w: combo <key> <key>...", ErrBadArguments)
		}
		keys := make([]protocol.Key, len(args))
		for i, a := range args {
			keys[i] = protocol.Key(strings.ToLower(a))
		}
		return action{messages: []protocol.Outbound{protocol.KeyboardCombo{Keys: keys}}}, nil

	case "move":
		if len(args) != 2 {
			return action{}, fmt.Errorf("%w: move <dx> <dy>", ErrBadArguments)
		}
		dx, dy, err := parsePair(args[0], args[1], strconv.ParseFloat)
		if err != nil {
			return action{}, err
		}
		return action{messages: []protocol.Outbound{protocol.MouseMove{DX: dx, DY: dy}}}, nil

	case "scroll":
		if len(args) != 2 {
			return action{}, fmt.Errorf("%w: scroll <dx> <dy>", ErrBadArguments)
		}
		dx, dy, err := parsePair(args[0], args[1], parseInt)
		if err != nil {
			return action{}, err
		}
		return action{messages: []protocol.Outbound{protocol.MouseScroll{DX: dx, DY: dy}}}, nil

	case "click", "press-mouse", "release-mouse":
		button := protocol.MouseLeft
		if len(args) > 0 {
			button = protocol.MouseButton(strings.ToLower(args[0]))
		}
		switch button {
		case protocol.MouseLeft, protocol.MouseRight, protocol.MouseMiddle:
		default:
			return action{}, fmt.Errorf("%w: unknown mouse button %q", ErrBadArguments, button)
		}
		var msg protocol.Outbound
		switch cmd {
		case "click":
			msg = protocol.MouseClick{Button: button}
		case "press-mouse":
			msg = protocol.MousePress{Button: button}
		default:
			msg = protocol.MouseRelease{Button: button}
		}
		return action{messages: []protocol.Outbound{msg}}, nil

	case "auto":
		if len(args) != 1 {
			return action{}, fmt.Errorf("%w: auto on|off", ErrBadArguments)
		}
		switch strings.ToLower(args[0]) {
		case "on":
			return action{control: controlAutoOn}, nil
		case "off":
			return action{control: controlAutoOff}, nil
		}
		return action{}, fmt.Errorf("%w: auto on|off", ErrBadArguments)

	case controlStatus, controlDisconnect, controlReconnect, controlCancel, controlQuit:
		return action{control: cmd}, nil
	case "exit":
		return action{control: controlQuit}, nil
	}

	return action{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
}

func parseInt(s string, _ int) (int, error) {
	return strconv.Atoi(s)
}

func parsePair[T any](a, b string, parse func(string, int) (T, error)) (T, T, error) {
	var zero T
	x, err := parse(a, 64)
	if err != nil {
		return zero, zero, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	y, err := parse(b, 64)
	if err != nil {
		return zero, zero, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	return x, y, nil
}
