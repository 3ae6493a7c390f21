package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/greenwinther/VibeWithMe/pkg/events"
	"github.com/greenwinther/VibeWithMe/pkg/models"
)

// ErrRoomNotFound is the registry's not-found condition. REST handlers map it
// to a 404; socket handlers acknowledge it with an error event.
var ErrRoomNotFound = errors.New("room not found")

type Store interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoomByID(ctx context.Context, id string) (*models.Room, error)
	ListPublicRooms(ctx context.Context) ([]*models.Room, error)
	TouchRoom(ctx context.Context, id string) error
	UpsertParticipant(ctx context.Context, userID, roomID string) error
	CountParticipants(ctx context.Context, roomID string) (int64, error)
}

// Cache is the Redis side: a read-through cache of room rows plus live
// connection counts per room.
type Cache interface {
	CacheRoom(ctx context.Context, room *models.Room) error
	CachedRoom(ctx context.Context, roomID string) (*models.Room, error)
	InvalidateRoom(ctx context.Context, roomID string) error
	OnlineCounts(ctx context.Context, roomIDs []string) (map[string]int, error)
}

type Service struct {
	store   Store
	cache   Cache
	journal events.Publisher
}

func NewService(store Store, cache Cache, journal events.Publisher) *Service {
	return &Service{store: store, cache: cache, journal: journal}
}

func (s *Service) CreateRoom(ctx context.Context, name string, isPublic bool) (*models.Room, error) {
	now := time.Now()
	room := &models.Room{
		ID:         uuid.New(),
		Name:       name,
		IsPublic:   isPublic,
		LastActive: now,
		CreatedAt:  now,
	}

	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	if err := s.cache.CacheRoom(ctx, room); err != nil {
		log.Warn().Err(err).Str("room_id", room.ID.String()).Msg("failed to cache room")
	}

	if err := s.journal.Publish(ctx, events.EventTypeRoomCreated, room.ID.String(), "", room); err != nil {
		log.Warn().Err(err).Msg("failed to journal room creation")
	}

	return room, nil
}

func (s *Service) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	if room, err := s.cache.CachedRoom(ctx, roomID); err == nil {
		return room, nil
	}

	room, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if err := s.cache.CacheRoom(ctx, room); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to cache room")
	}

	return room, nil
}

// ListPublicRooms returns public rooms ordered by last activity, each
// annotated with its live connection count. Live presence comes from the
// connection counters, not the participant table: membership rows are
// historical and survive disconnects.
func (s *Service) ListPublicRooms(ctx context.Context) ([]models.RoomDTO, error) {
	rooms, err := s.store.ListPublicRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	ids := make([]string, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID.String()
	}
	counts, err := s.cache.OnlineCounts(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read presence counts")
		counts = map[string]int{}
	}

	out := make([]models.RoomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, models.RoomDTO{
			ID:                   r.ID.String(),
			Name:                 r.Name,
			IsPublic:             r.IsPublic,
			CreatedAt:            r.CreatedAt,
			LastActive:           r.LastActive,
			CurrentVideoPosition: r.CurrentVideoPosition,
			CurrentVideoTime:     r.CurrentVideoTime,
			ParticipantCount:     counts[r.ID.String()],
		})
	}
	return out, nil
}

// TouchLastActive bumps the room's last-active timestamp. Called by any
// mutating room event.
func (s *Service) TouchLastActive(ctx context.Context, roomID string) error {
	if err := s.store.TouchRoom(ctx, roomID); err != nil {
		return fmt.Errorf("failed to touch room: %w", err)
	}
	if err := s.cache.InvalidateRoom(ctx, roomID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to invalidate room cache")
	}
	return nil
}

// Join records the (user, room) membership edge. Fully idempotent: joining
// the same room twice upserts, never duplicates.
func (s *Service) Join(ctx context.Context, roomID, userID string) error {
	if err := s.store.UpsertParticipant(ctx, userID, roomID); err != nil {
		return fmt.Errorf("failed to upsert participant: %w", err)
	}
	if err := s.journal.Publish(ctx, events.EventTypeUserJoined, roomID, userID, nil); err != nil {
		log.Warn().Err(err).Msg("failed to journal join")
	}
	return nil
}

// MemberCount reports historical membership, not live presence.
func (s *Service) MemberCount(ctx context.Context, roomID string) (int64, error) {
	return s.store.CountParticipants(ctx, roomID)
}
