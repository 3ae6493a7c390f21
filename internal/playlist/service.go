package playlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/greenwinther/VibeWithMe/internal/room"
	"github.com/greenwinther/VibeWithMe/pkg/events"
	"github.com/greenwinther/VibeWithMe/pkg/models"
)

// Socket event names owned by the playlist engine.
const (
	EventUpdate  = "playlist:update"
	EventFetch   = "playlist:fetch"
	EventAdd     = "video:add"
	EventAdvance = "video:advance"
)

// ErrIndexOutOfRange rejects an advance whose target index does not point at
// a queue entry. The chosen policy is reject (not clamp): the requester gets
// an error event and authoritative state is left untouched.
var ErrIndexOutOfRange = errors.New("video index out of range")

type AdvancePayload struct {
	NewIndex int `json:"newIndex"`
}

type Store interface {
	GetRoomByID(ctx context.Context, id string) (*models.Room, error)
	AddVideo(ctx context.Context, video *models.Video) error
	GetPlaylist(ctx context.Context, roomID string) ([]*models.Video, error)
	SetRoomVideoPosition(ctx context.Context, id string, index int) error
}

type Broadcaster interface {
	ToRoom(roomID, event string, data interface{})
}

// Cache is the room-row cache, invalidated whenever a queue mutation also
// touches the room row (last_active, playback cursor).
type Cache interface {
	InvalidateRoom(ctx context.Context, roomID string) error
}

// Service owns the ordered queue per room: position assignment, re-fetch and
// broadcast-on-change. Queue broadcasts are always full snapshots, never
// deltas, so clients converge regardless of delivery order.
type Service struct {
	store   Store
	cache   Cache
	bc      Broadcaster
	journal events.Publisher
}

func NewService(store Store, cache Cache, bc Broadcaster, journal events.Publisher) *Service {
	return &Service{store: store, cache: cache, bc: bc, journal: journal}
}

func (s *Service) invalidate(ctx context.Context, roomID string) {
	if err := s.cache.InvalidateRoom(ctx, roomID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to invalidate room cache")
	}
}

func (s *Service) FetchQueue(ctx context.Context, roomID string) ([]models.PlaylistItemDTO, error) {
	videos, err := s.store.GetPlaylist(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	queue := make([]models.PlaylistItemDTO, 0, len(videos))
	for _, v := range videos {
		queue = append(queue, v.PlaylistItem())
	}
	return queue, nil
}

// AddVideo appends the video at position max+1, re-reads the full queue and
// broadcasts it to everyone in the room, the adder included. Adding never
// moves the playback cursor; starting playback on a newly non-empty queue is
// client policy.
func (s *Service) AddVideo(ctx context.Context, roomID, userID string, video models.VideoDTO) ([]models.PlaylistItemDTO, error) {
	rid, err := uuid.Parse(roomID)
	if err != nil {
		return nil, room.ErrRoomNotFound
	}

	entry := &models.Video{
		ID:        uuid.New(),
		RoomID:    rid,
		VideoID:   video.VideoID,
		Title:     video.Title,
		Thumbnail: video.Thumbnail,
		Duration:  video.Duration,
		AddedByID: userID,
		CreatedAt: time.Now(),
	}
	if err := s.store.AddVideo(ctx, entry); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, room.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to add video: %w", err)
	}
	s.invalidate(ctx, roomID)

	queue, err := s.FetchQueue(ctx, roomID)
	if err != nil {
		return nil, err
	}

	s.bc.ToRoom(roomID, EventUpdate, queue)

	if err := s.journal.Publish(ctx, events.EventTypeVideoAdded, roomID, userID, video); err != nil {
		log.Warn().Err(err).Msg("failed to journal video add")
	}

	return queue, nil
}

// Advance moves the room's playback cursor to newIndex and resets the video
// time to zero. The new index is broadcast to all connections including the
// requester, whose optimistic local state must also converge.
func (s *Service) Advance(ctx context.Context, roomID string, newIndex int) error {
	videos, err := s.store.GetPlaylist(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist: %w", err)
	}
	if newIndex < 0 || newIndex >= len(videos) {
		return ErrIndexOutOfRange
	}

	if err := s.store.SetRoomVideoPosition(ctx, roomID, newIndex); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return room.ErrRoomNotFound
		}
		return fmt.Errorf("failed to advance video: %w", err)
	}
	s.invalidate(ctx, roomID)

	s.bc.ToRoom(roomID, EventAdvance, AdvancePayload{NewIndex: newIndex})

	if err := s.journal.Publish(ctx, events.EventTypeVideoAdvanced, roomID, "", AdvancePayload{NewIndex: newIndex}); err != nil {
		log.Warn().Err(err).Msg("failed to journal video advance")
	}

	return nil
}
