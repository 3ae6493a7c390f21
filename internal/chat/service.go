package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/greenwinther/VibeWithMe/internal/metrics"
	"github.com/greenwinther/VibeWithMe/internal/room"
	"github.com/greenwinther/VibeWithMe/pkg/events"
	"github.com/greenwinther/VibeWithMe/pkg/models"
)

// Socket event names owned by the chat relay.
const (
	EventMessage = "chat:message"
	EventHistory = "chat:history"
	EventFetch   = "chat:fetch"
)

type Store interface {
	GetRoomByID(ctx context.Context, id string) (*models.Room, error)
	TouchRoom(ctx context.Context, id string) error
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, roomID string) ([]*models.Message, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type Broadcaster interface {
	ToRoom(roomID, event string, data interface{})
}

// Cache is the room-row cache; posting bumps last_active, so the cached row
// is dropped alongside.
type Cache interface {
	InvalidateRoom(ctx context.Context, roomID string) error
}

// Service is the chat relay: an append-only ordered message log per room.
// Messages are persisted first, then fanned out to every connection in the
// room including the sender; clients deduplicate by message id.
type Service struct {
	store   Store
	cache   Cache
	bc      Broadcaster
	journal events.Publisher
}

func NewService(store Store, cache Cache, bc Broadcaster, journal events.Publisher) *Service {
	return &Service{store: store, cache: cache, bc: bc, journal: journal}
}

// History returns the full message log ascending by creation time. The sender
// snapshot is taken at lookup time, so a later rename retroactively changes
// historical display.
func (s *Service) History(ctx context.Context, roomID string) ([]models.ChatMessageDTO, error) {
	msgs, err := s.store.GetMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chat history: %w", err)
	}
	out := make([]models.ChatMessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.DTO())
	}
	return out, nil
}

// Post persists the message, then broadcasts it to the whole room. The relay
// does not reject empty text; suppressing blank sends is a client policy.
func (s *Service) Post(ctx context.Context, roomID, userID, text string) (models.ChatMessageDTO, error) {
	rid, err := uuid.Parse(roomID)
	if err != nil {
		return models.ChatMessageDTO{}, room.ErrRoomNotFound
	}
	if _, err := s.store.GetRoomByID(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ChatMessageDTO{}, room.ErrRoomNotFound
		}
		return models.ChatMessageDTO{}, fmt.Errorf("failed to look up room: %w", err)
	}

	sender, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return models.ChatMessageDTO{}, fmt.Errorf("failed to look up sender: %w", err)
	}

	msg := &models.Message{
		ID:        uuid.New(),
		RoomID:    rid,
		SenderID:  userID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return models.ChatMessageDTO{}, fmt.Errorf("failed to persist message: %w", err)
	}
	if err := s.store.TouchRoom(ctx, roomID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to touch room after chat post")
	}
	if err := s.cache.InvalidateRoom(ctx, roomID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to invalidate room cache")
	}

	msg.Sender = *sender
	dto := msg.DTO()

	metrics.ChatMessagesTotal.Inc()
	s.bc.ToRoom(roomID, EventMessage, dto)

	if err := s.journal.Publish(ctx, events.EventTypeChatPosted, roomID, userID, nil); err != nil {
		log.Warn().Err(err).Msg("failed to journal chat post")
	}

	return dto, nil
}
