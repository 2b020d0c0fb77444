package protocol

import "encoding/json"

// envelope is the common shape used to dispatch on "type".
type envelope struct {
	Type     string          `json:"type"`
	Action   string          `json:"action,omitempty"`
	PlayerID json.RawMessage `json:"playerId,omitempty"`
	Message  json.RawMessage `json:"message,omitempty"`
}

type inputFrame struct {
	Type     string        `json:"type"`
	PlayerID int           `json:"playerId"`
	Buttons  buttonsFrame  `json:"buttons"`
	Triggers triggersFrame `json:"triggers"`
	Axes     axesFrame     `json:"axes"`
}

type buttonsFrame struct {
	A         bool `json:"a"`
	B         bool `json:"b"`
	X         bool `json:"x"`
	Y         bool `json:"y"`
	LB        bool `json:"lb"`
	RB        bool `json:"rb"`
	Start     bool `json:"start"`
	Back      bool `json:"back"`
	Guide     bool `json:"guide"`
	L3        bool `json:"l3"`
	R3        bool `json:"r3"`
	DPadUp    bool `json:"dpad_up"`
	DPadDown  bool `json:"dpad_down"`
	DPadLeft  bool `json:"dpad_left"`
	DPadRight bool `json:"dpad_right"`
}

type triggersFrame struct {
	LT float64 `json:"lt"`
	RT float64 `json:"rt"`
}

type axesFrame struct {
	LeftX  float64 `json:"left_x"`
	LeftY  float64 `json:"left_y"`
	RightX float64 `json:"right_x"`
	RightY float64 `json:"right_y"`
}

type mouseFrame struct {
	Type   string      `json:"type"`
	Action string      `json:"action"`
	DX     *float64    `json:"dx,omitempty"`
	DY     *float64    `json:"dy,omitempty"`
	Button MouseButton `json:"button,omitempty"`
}

type keyboardFrame struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Text   string `json:"text,omitempty"`
	Key    Key    `json:"key,omitempty"`
	Keys   []Key  `json:"keys,omitempty"`
}

type typeOnlyFrame struct {
	Type string `json:"type"`
}

type connectedFrame struct {
	Type     string `json:"type"`
	PlayerID int    `json:"playerId"`
	Message  string `json:"message,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
