package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/greenwinther/VibeWithMe/pkg/models"
)

const (
	onlineKeyPrefix = "online:"
	roomKeyPrefix   = "room:"
	roomCacheTTL    = 24 * time.Hour
)

// Store tracks live connection counts per room and keeps a short-lived JSON
// cache of room rows. Connection counts are the live-presence signal; the
// participant table only records who has ever joined.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) ConnJoined(ctx context.Context, roomID string) (int64, error) {
	return s.client.Incr(ctx, onlineKeyPrefix+roomID).Result()
}

func (s *Store) ConnLeft(ctx context.Context, roomID string) (int64, error) {
	n, err := s.client.Decr(ctx, onlineKeyPrefix+roomID).Result()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		// A restart can leave the counter behind the real connection set.
		s.client.Set(ctx, onlineKeyPrefix+roomID, 0, 0)
		return 0, nil
	}
	return n, nil
}

func (s *Store) Online(ctx context.Context, roomID string) (int, error) {
	n, err := s.client.Get(ctx, onlineKeyPrefix+roomID).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (s *Store) OnlineCounts(ctx context.Context, roomIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(roomIDs))
	if len(roomIDs) == 0 {
		return counts, nil
	}
	keys := make([]string, len(roomIDs))
	for i, id := range roomIDs {
		keys[i] = onlineKeyPrefix + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence counts: %w", err)
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			var n int
			fmt.Sscanf(str, "%d", &n)
			counts[roomIDs[i]] = n
		}
	}
	return counts, nil
}

// ClearRooms drops presence counters and cached rows for swept rooms.
func (s *Store) ClearRooms(ctx context.Context, roomIDs []string) error {
	if len(roomIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(roomIDs)*2)
	for _, id := range roomIDs {
		keys = append(keys, onlineKeyPrefix+id, roomKeyPrefix+id)
	}
	return s.client.Del(ctx, keys...).Err()
}

// Room row cache, read-through with TTL.

func (s *Store) CacheRoom(ctx context.Context, room *models.Room) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}
	return s.client.Set(ctx, roomKeyPrefix+room.ID.String(), roomJSON, roomCacheTTL).Err()
}

func (s *Store) CachedRoom(ctx context.Context, roomID string) (*models.Room, error) {
	roomJSON, err := s.client.Get(ctx, roomKeyPrefix+roomID).Bytes()
	if err != nil {
		return nil, err
	}
	var room models.Room
	if err := json.Unmarshal(roomJSON, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Store) InvalidateRoom(ctx context.Context, roomID string) error {
	return s.client.Del(ctx, roomKeyPrefix+roomID).Err()
}
