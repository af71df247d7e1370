package events

import "strings"

// Device discriminators carried by every raw event.
const (
	DeviceKeyboard = "keyboard"
	DeviceMouse    = "mouse"
)

// Raw event types. Keyboards report press/release transitions; mice report
// click (a press or release, distinguished by the pressed flag), move, and
// scroll samples.
const (
	TypePress   = "press"
	TypeRelease = "release"
	TypeClick   = "click"
	TypeMove    = "move"
	TypeScroll  = "scroll"
)

// Compressed event types produced by the condenser. Raw types also appear in
// the compressed stream when an event passes through unmerged.
const (
	TypeKeyClick        = "key_click"
	TypeTypedString     = "typed_string"
	TypeMouseClick      = "mouse_click"
	TypeCondensedMove   = "condensed_move"
	TypeCondensedScroll = "condensed_scroll"
)

// Named keys use a "Key." prefix in the wire format (for example "Key.ctrl").
// Plain character keys carry the character itself.
const (
	namedKeyPrefix = "Key."

	// KeySpace is the one named key that contributes to typed text.
	KeySpace = "Key.space"
)

// Raw is a single input observation as produced by a capture collaborator.
// Timestamps are wall-clock seconds; callers must deliver events in
// non-decreasing timestamp order. Only the fields relevant to the device and
// type are populated.
type Raw struct {
	TS     float64 `json:"ts"`
	Device string  `json:"device"`
	Type   string  `json:"type"`

	// Keyboard payload.
	Key string `json:"key,omitempty"`

	// Mouse payload.
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Button  string  `json:"button,omitempty"`
	Pressed *bool   `json:"pressed,omitempty"`
	DX      int     `json:"dx,omitempty"`
	DY      int     `json:"dy,omitempty"`
}

// IsPress reports whether the event opens a press awaiting a release.
func (r Raw) IsPress() bool {
	switch r.Device {
	case DeviceKeyboard:
		return r.Type == TypePress
	case DeviceMouse:
		return r.Type == TypeClick && r.Pressed != nil && *r.Pressed
	}
	return false
}

// Compressed is an emitted output record. Classified records use the type
// constants above; pass-through records keep their raw type and payload.
type Compressed struct {
	TS       float64 `json:"ts"`
	Device   string  `json:"device"`
	Type     string  `json:"type"`
	Duration float64 `json:"duration,omitempty"`

	// key_click and keyboard pass-through.
	Key string `json:"key,omitempty"`

	// typed_string.
	String   string `json:"string,omitempty"`
	NumChars int    `json:"num_chars,omitempty"`

	// mouse_click and mouse pass-through.
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Button  string  `json:"button,omitempty"`
	Pressed *bool   `json:"pressed,omitempty"`
	DX      int     `json:"dx,omitempty"`
	DY      int     `json:"dy,omitempty"`

	// condensed_move.
	StartX   float64 `json:"start_x,omitempty"`
	StartY   float64 `json:"start_y,omitempty"`
	EndX     float64 `json:"end_x,omitempty"`
	EndY     float64 `json:"end_y,omitempty"`
	NumMoves int     `json:"num_moves,omitempty"`

	// condensed_scroll.
	TotalDX    int `json:"total_dx,omitempty"`
	TotalDY    int `json:"total_dy,omitempty"`
	NumScrolls int `json:"num_scrolls,omitempty"`
}

// Passthrough converts a raw event into a compressed record without merging
// or classification, preserving its type and payload.
func Passthrough(r Raw) Compressed {
	return Compressed{
		TS:      r.TS,
		Device:  r.Device,
		Type:    r.Type,
		Key:     r.Key,
		X:       r.X,
		Y:       r.Y,
		Button:  r.Button,
		Pressed: r.Pressed,
		DX:      r.DX,
		DY:      r.DY,
	}
}

// IsCharKey reports whether the key contributes a character to typed text.
// Plain keys ("a", "1", "$") always do; of the named keys only the space bar
// counts.
func IsCharKey(key string) bool {
	if key == "" {
		return false
	}
	if strings.HasPrefix(key, namedKeyPrefix) {
		return key == KeySpace
	}
	return true
}

// CharForKey returns the character a key contributes to typed text.
func CharForKey(key string) string {
	if key == KeySpace {
		return " "
	}
	return key
}
