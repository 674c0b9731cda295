package domain

import (
	"encoding/json"
	"fmt"
)

// Kind is the event kind carried in an envelope's "type" field.
type Kind string

const (
	KindJoinRoom          Kind = "join_room"
	KindLeaveRoom         Kind = "leave_room"
	KindChat              Kind = "chat"
	KindCommand           Kind = "command"
	KindUserJoined        Kind = "user_joined"
	KindUserLeft          Kind = "user_left"
	KindVideoChanged      Kind = "video_changed"
	KindVideoStateChanged Kind = "video_state_changed"
	KindSystem            Kind = "system"
)

// Known reports whether k is part of the shared vocabulary. Unknown kinds are
// still relayed.
func (k Kind) Known() bool {
	switch k {
	case KindJoinRoom, KindLeaveRoom, KindChat, KindCommand, KindUserJoined,
		KindUserLeft, KindVideoChanged, KindVideoStateChanged, KindSystem:
		return true
	}
	return false
}

// Action is a playback control carried by video_state_changed.
type Action string

const (
	ActionPlay       Action = "play"
	ActionPause      Action = "pause"
	ActionSeek       Action = "seek"
	ActionSpeed      Action = "speed"
	ActionVolume     Action = "volume"
	ActionQuality    Action = "quality"
	ActionFullscreen Action = "fullscreen"
)

func (a Action) Valid() bool {
	switch a {
	case ActionPlay, ActionPause, ActionSeek, ActionSpeed, ActionVolume, ActionQuality, ActionFullscreen:
		return true
	}
	return false
}

// NeedsValue reports whether the action requires a value.
func (a Action) NeedsValue() bool {
	switch a {
	case ActionSeek, ActionSpeed, ActionVolume, ActionQuality:
		return true
	}
	return false
}

// VideoStateChange is the payload of a video_state_changed envelope. Value is
// a JSON number for seek/speed/volume and a JSON string for quality.
type VideoStateChange struct {
	Action Action          `json:"action"`
	Value  json.RawMessage `json:"value,omitempty"`
}

func NewStateChange(action Action) *VideoStateChange {
	return &VideoStateChange{Action: action}
}

func NewNumberChange(action Action, v float64) *VideoStateChange {
	raw, _ := json.Marshal(v)
	return &VideoStateChange{Action: action, Value: raw}
}

func NewStringChange(action Action, v string) *VideoStateChange {
	raw, _ := json.Marshal(v)
	return &VideoStateChange{Action: action, Value: raw}
}

func (c *VideoStateChange) HasValue() bool {
	return len(c.Value) > 0 && string(c.Value) != "null"
}

// Number decodes the value as a number. Numeric strings are accepted as well.
func (c *VideoStateChange) Number() (float64, bool) {
	if !c.HasValue() {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(c.Value, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		if _, err := fmt.Sscanf(s, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Label decodes the value as a string; numbers are rendered in their JSON form.
func (c *VideoStateChange) Label() (string, bool) {
	if !c.HasValue() {
		return "", false
	}
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		return s, true
	}
	var f float64
	if err := json.Unmarshal(c.Value, &f); err == nil {
		return string(c.Value), true
	}
	return "", false
}

// Envelope is one relay frame. Timestamp is assigned by the relay in unix
// milliseconds; senders leave it zero. Origin and Seq tag optimistic local
// actions so the sender can recognise its own echo.
type Envelope struct {
	Kind        Kind              `json:"type"`
	RoomID      RoomCode          `json:"roomId"`
	DisplayName string            `json:"displayName,omitempty"`
	Text        string            `json:"text,omitempty"`
	VideoURL    string            `json:"videoUrl,omitempty"`
	VideoState  *VideoStateChange `json:"videoState,omitempty"`
	Origin      string            `json:"origin,omitempty"`
	Seq         uint64            `json:"seq,omitempty"`
	Timestamp   int64             `json:"timestamp,omitempty"`
}

// DecodeEnvelope parses a frame and checks the required fields for its kind.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Validate checks the payload contract of the envelope's kind.
func (e *Envelope) Validate() error {
	if e.Kind == "" {
		return fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	if e.RoomID == "" {
		return fmt.Errorf("%w: %s missing roomId", ErrMalformedEnvelope, e.Kind)
	}

	switch e.Kind {
	case KindJoinRoom, KindLeaveRoom, KindUserJoined, KindUserLeft:
		if e.DisplayName == "" {
			return fmt.Errorf("%w: %s missing displayName", ErrMalformedEnvelope, e.Kind)
		}
	case KindChat, KindCommand:
		if e.DisplayName == "" || e.Text == "" {
			return fmt.Errorf("%w: %s requires displayName and text", ErrMalformedEnvelope, e.Kind)
		}
	case KindSystem:
		if e.Text == "" {
			return fmt.Errorf("%w: system missing text", ErrMalformedEnvelope)
		}
	case KindVideoChanged:
		if e.VideoURL == "" {
			return fmt.Errorf("%w: video_changed missing videoUrl", ErrMalformedEnvelope)
		}
	case KindVideoStateChanged:
		if e.VideoState == nil || !e.VideoState.Action.Valid() {
			return fmt.Errorf("%w: video_state_changed has no valid action", ErrMalformedEnvelope)
		}
		if e.VideoState.Action.NeedsValue() && !e.VideoState.HasValue() {
			return fmt.Errorf("%w: %s requires a value", ErrMalformedEnvelope, e.VideoState.Action)
		}
	}
	return nil
}
