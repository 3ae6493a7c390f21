package playback

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/greenwinther/VibeWithMe/internal/room"
	"github.com/greenwinther/VibeWithMe/pkg/events"
	"github.com/greenwinther/VibeWithMe/pkg/models"
)

// Socket event names owned by the playback synchronizer.
const (
	EventPlayPause = "play-pause"
	EventSeek      = "seek"
	EventRoomState = "room:state"
)

type PlayPausePayload struct {
	Playing bool `json:"playing"`
}

type SeekPayload struct {
	Time float64 `json:"time"`
}

type Store interface {
	GetRoomByID(ctx context.Context, id string) (*models.Room, error)
	SetRoomPlaying(ctx context.Context, id string, playing bool) error
	SetRoomVideoTime(ctx context.Context, id string, t float64) error
}

type Broadcaster interface {
	ToRoom(roomID, event string, data interface{})
}

// Cache is the room-row cache; every persisted playback mutation drops the
// cached row so the REST room view never serves stale playback state.
type Cache interface {
	InvalidateRoom(ctx context.Context, roomID string) error
}

// Service keeps the authoritative (playing, time, index) tuple per room. All
// three fields are durable, so a late joiner's snapshot always reflects the
// last persisted state, playing included. Every relay echoes to the sender
// too; setting already-held state is idempotent on the client.
type Service struct {
	store   Store
	cache   Cache
	bc      Broadcaster
	journal events.Publisher
}

func NewService(store Store, cache Cache, bc Broadcaster, journal events.Publisher) *Service {
	return &Service{store: store, cache: cache, bc: bc, journal: journal}
}

func (s *Service) PlayPause(ctx context.Context, roomID string, playing bool) error {
	if err := s.store.SetRoomPlaying(ctx, roomID, playing); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return room.ErrRoomNotFound
		}
		return fmt.Errorf("failed to persist play state: %w", err)
	}
	s.invalidate(ctx, roomID)

	s.bc.ToRoom(roomID, EventPlayPause, PlayPausePayload{Playing: playing})

	if err := s.journal.Publish(ctx, events.EventTypePlayPause, roomID, "", PlayPausePayload{Playing: playing}); err != nil {
		log.Warn().Err(err).Msg("failed to journal play-pause")
	}
	return nil
}

func (s *Service) Seek(ctx context.Context, roomID string, t float64) error {
	if err := s.store.SetRoomVideoTime(ctx, roomID, t); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return room.ErrRoomNotFound
		}
		return fmt.Errorf("failed to persist seek: %w", err)
	}
	s.invalidate(ctx, roomID)

	s.bc.ToRoom(roomID, EventSeek, SeekPayload{Time: t})

	if err := s.journal.Publish(ctx, events.EventTypeSeek, roomID, "", SeekPayload{Time: t}); err != nil {
		log.Warn().Err(err).Msg("failed to journal seek")
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, roomID string) {
	if err := s.cache.InvalidateRoom(ctx, roomID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to invalidate room cache")
	}
}

// Snapshot reads the persisted playback tuple for a joining connection. It
// deliberately bypasses any cache: the snapshot must never reflect an
// in-flight un-persisted value.
func (s *Service) Snapshot(ctx context.Context, roomID string) (models.RoomStateDTO, error) {
	r, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoomStateDTO{}, room.ErrRoomNotFound
		}
		return models.RoomStateDTO{}, fmt.Errorf("failed to read room state: %w", err)
	}
	return models.RoomStateDTO{
		VideoIndex: r.CurrentVideoPosition,
		Time:       r.CurrentVideoTime,
		Playing:    r.IsPlaying,
	}, nil
}
