package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	EventTypeRoomCreated   EventType = "room_created"
	EventTypeUserJoined    EventType = "user_joined"
	EventTypeVideoAdded    EventType = "video_added"
	EventTypeVideoAdvanced EventType = "video_advanced"
	EventTypePlayPause     EventType = "play_pause"
	EventTypeSeek          EventType = "seek"
	EventTypeChatPosted    EventType = "chat_posted"
	EventTypeRoomsSwept    EventType = "rooms_swept"
)

// Event is the journal record written for every room mutation. The journal is
// an audit trail of playback commands and room activity; the live broadcast
// path does not depend on it.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"room_id"`
	UserID    string          `json:"user_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Publisher is satisfied by the Kafka journal and by Nop for tests.
type Publisher interface {
	Publish(ctx context.Context, typ EventType, roomID, userID string, payload interface{}) error
}

type KafkaJournal struct {
	writer *kafka.Writer
}

func NewKafkaJournal(brokers []string, topic string) *KafkaJournal {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &KafkaJournal{writer: writer}
}

func (k *KafkaJournal) Publish(ctx context.Context, typ EventType, roomID, userID string, payload interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		raw = b
	}

	event := Event{
		Type:      typ,
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   raw,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(uuid.New().String()),
		Value: eventJSON,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (k *KafkaJournal) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// Nop discards events. Used when no brokers are configured and in tests.
type Nop struct{}

func (Nop) Publish(context.Context, EventType, string, string, interface{}) error { return nil }
