package protocol

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rickgao/padlink/internal/input"
)

// Encode serializes an outbound message into a JSON frame.
func Encode(msg Outbound) ([]byte, error) {
	switch m := msg.(type) {
	case Input:
		return json.Marshal(newInputFrame(m))
	case MouseMove:
		return json.Marshal(mouseFrame{Type: TypeMouse, Action: ActionMove, DX: &m.DX, DY: &m.DY})
	case MouseClick:
		return json.Marshal(mouseFrame{Type: TypeMouse, Action: ActionClick, Button: m.Button})
	case MousePress:
		return json.Marshal(mouseFrame{Type: TypeMouse, Action: ActionPress, Button: m.Button})
	case MouseRelease:
		return json.Marshal(mouseFrame{Type: TypeMouse, Action: ActionRelease, Button: m.Button})
	case MouseScroll:
		dx, dy := float64(m.DX), float64(m.DY)
		return json.Marshal(mouseFrame{Type: TypeMouse, Action: ActionScroll, DX: &dx, DY: &dy})
	case KeyboardType:
		return json.Marshal(keyboardFrame{Type: TypeKeyboard, Action: ActionType, Text: m.Text})
	case KeyboardKey:
		return json.Marshal(keyboardFrame{Type: TypeKeyboard, Action: ActionKey, Key: m.Key})
	case KeyboardCombo:
		return json.Marshal(keyboardFrame{Type: TypeKeyboard, Action: ActionCombo, Keys: m.Keys})
	case Ping:
		return json.Marshal(typeOnlyFrame{Type: TypePing})
	case Disconnect:
		return json.Marshal(typeOnlyFrame{Type: TypeDisconnect})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedMessage, msg)
	}
}

func newInputFrame(m Input) inputFrame {
	s := m.Snapshot.Clamp()
	return inputFrame{
		Type:     TypeInput,
		PlayerID: m.PlayerID,
		Buttons: buttonsFrame{
			A:         s.A,
			B:         s.B,
			X:         s.X,
			Y:         s.Y,
			LB:        s.LB,
			RB:        s.RB,
			Start:     s.Start,
			Back:      s.Back,
			Guide:     s.Guide,
			L3:        s.L3,
			R3:        s.R3,
			DPadUp:    s.DPadUp,
			DPadDown:  s.DPadDown,
			DPadLeft:  s.DPadLeft,
			DPadRight: s.DPadRight,
		},
		Triggers: triggersFrame{LT: s.LT, RT: s.RT},
		Axes: axesFrame{
			LeftX:  s.LeftX,
			LeftY:  s.LeftY,
			RightX: s.RightX,
			RightY: s.RightY,
		},
	}
}

// Decode parses an inbound frame. It never fails: frames that cannot be
// parsed or carry an unrecognised type are returned as Unknown.
func Decode(data []byte) Inbound {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Unknown{}
	}

	switch env.Type {
	case TypeConnected:
		return Connected{PlayerID: decodePlayerID(env.PlayerID)}
	case TypeError:
		return Error{Message: decodeMessage(env.Message)}
	case TypePong:
		return Pong{}
	default:
		return Unknown{Type: env.Type}
	}
}

// decodePlayerID accepts any JSON number that is a whole positive value.
func decodePlayerID(raw json.RawMessage) int {
	if len(raw) == 0 {
		return DefaultPlayerID
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return DefaultPlayerID
	}
	if f < 1 || f > math.MaxInt32 || f != math.Trunc(f) {
		return DefaultPlayerID
	}
	return int(f)
}

func decodeMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return DefaultErrorMessage
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return DefaultErrorMessage
	}
	return s
}

// EncodeInbound serializes a peer-to-handheld message. Used by the reference peer.
func EncodeInbound(msg Inbound) ([]byte, error) {
	switch m := msg.(type) {
	case Connected:
		return json.Marshal(connectedFrame{
			Type:     TypeConnected,
			PlayerID: m.PlayerID,
			Message:  fmt.Sprintf("Connected as Player %d", m.PlayerID),
		})
	case Error:
		return json.Marshal(errorFrame{Type: TypeError, Message: m.Message})
	case Pong:
		return json.Marshal(typeOnlyFrame{Type: TypePong})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedMessage, msg)
	}
}

// DecodeOutbound parses a handheld-to-peer frame. Unlike Decode it reports
// malformed frames as errors, since the peer needs to know what it dropped.
func DecodeOutbound(data []byte) (Outbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeInput:
		var f inputFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: input: %v", ErrMalformed, err)
		}
		return f.toInput(), nil

	case TypeMouse:
		var f mouseFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: mouse: %v", ErrMalformed, err)
		}
		return f.toOutbound()

	case TypeKeyboard:
		var f keyboardFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: keyboard: %v", ErrMalformed, err)
		}
		return f.toOutbound()

	case TypePing:
		return Ping{}, nil
	case TypeDisconnect:
		return Disconnect{}, nil
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnsupportedMessage, env.Type)
	}
}

func (f inputFrame) toInput() Input {
	return Input{
		PlayerID: f.PlayerID,
		Snapshot: input.Snapshot{
			A:         f.Buttons.A,
			B:         f.Buttons.B,
			X:         f.Buttons.X,
			Y:         f.Buttons.Y,
			LB:        f.Buttons.LB,
			RB:        f.Buttons.RB,
			Start:     f.Buttons.Start,
			Back:      f.Buttons.Back,
			Guide:     f.Buttons.Guide,
			L3:        f.Buttons.L3,
			R3:        f.Buttons.R3,
			DPadUp:    f.Buttons.DPadUp,
			DPadDown:  f.Buttons.DPadDown,
			DPadLeft:  f.Buttons.DPadLeft,
			DPadRight: f.Buttons.DPadRight,
			LT:        f.Triggers.LT,
			RT:        f.Triggers.RT,
			LeftX:     f.Axes.LeftX,
			LeftY:     f.Axes.LeftY,
			RightX:    f.Axes.RightX,
			RightY:    f.Axes.RightY,
		}.Clamp(),
	}
}

func (f mouseFrame) toOutbound() (Outbound, error) {
	button := f.Button
	if button == "" {
		button = MouseLeft
	}

	switch f.Action {
	case ActionMove:
		return MouseMove{DX: deref(f.DX), DY: deref(f.DY)}, nil
	case ActionClick:
		return MouseClick{Button: button}, nil
	case ActionPress:
		return MousePress{Button: button}, nil
	case ActionRelease:
		return MouseRelease{Button: button}, nil
	case ActionScroll:
		return MouseScroll{DX: int(deref(f.DX)), DY: int(deref(f.DY))}, nil
	default:
		return nil, fmt.Errorf("%w: mouse action %q", ErrUnsupportedMessage, f.Action)
	}
}

func (f keyboardFrame) toOutbound() (Outbound, error) {
	switch f.Action {
	case ActionType:
		return KeyboardType{Text: f.Text}, nil
	case ActionKey:
		return KeyboardKey{Key: f.Key}, nil
	case ActionCombo:
		return KeyboardCombo{Keys: f.Keys}, nil
	default:
		return nil, fmt.Errorf("%w: keyboard action %q", ErrUnsupportedMessage, f.Action)
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// EditMessages converts a text field edit into the keyboard messages that
// reproduce it on the peer: one backspace per deleted character, then the typed text.
func EditMessages(e input.Edit) []Outbound {
	msgs := make([]Outbound, 0, e.Backspaces+1)
	for i := 0; i < e.Backspaces; i++ {
		msgs = append(msgs, KeyboardKey{Key: KeyBackspace})
	}
	if e.Text != "" {
		msgs = append(msgs, KeyboardType{Text: e.Text})
	}
	return msgs
}
