package ws

import (
	"encoding/json"

	"github.com/greenwinther/VibeWithMe/pkg/models"
)

// Event names owned by the session coordinator. The chat, playlist and
// playback packages own their own event names.
const (
	EventJoinRoom   = "join-room"
	EventUserJoined = "user-joined"
	EventSignal     = "signal"
	EventError      = "error"
)

// Envelope is the wire frame for every socket event in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type UserJoinedPayload struct {
	UserID string `json:"userId"`
	ConnID string `json:"connId"`
}

type ChatMessagePayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

type RoomRefPayload struct {
	RoomID string `json:"roomId"`
}

type VideoAddPayload struct {
	RoomID string          `json:"roomId"`
	UserID string          `json:"userId"`
	Video  models.VideoDTO `json:"video"`
}

type PlayPausePayload struct {
	RoomID  string `json:"roomId"`
	Playing bool   `json:"playing"`
}

type SeekPayload struct {
	RoomID string  `json:"roomId"`
	Time   float64 `json:"time"`
}

type AdvancePayload struct {
	RoomID   string `json:"roomId"`
	NewIndex int    `json:"newIndex"`
}

// SignalPayload is an opaque pass-through keyed by target connection id; the
// server never interprets the signal body.
type SignalPayload struct {
	To     string          `json:"to"`
	From   string          `json:"from,omitempty"`
	Signal json.RawMessage `json:"signal"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func marshalEvent(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: event, Data: raw})
}
