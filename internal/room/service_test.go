package room

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/greenwinther/VibeWithMe/pkg/events"
	"github.com/greenwinther/VibeWithMe/pkg/models"
)

type fakeStore struct {
	rooms        map[string]*models.Room
	participants map[string]map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:        make(map[string]*models.Room),
		participants: make(map[string]map[string]bool),
	}
}

func (f *fakeStore) CreateRoom(_ context.Context, room *models.Room) error {
	f.rooms[room.ID.String()] = room
	return nil
}

func (f *fakeStore) GetRoomByID(_ context.Context, id string) (*models.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return room, nil
}

func (f *fakeStore) ListPublicRooms(_ context.Context) ([]*models.Room, error) {
	var out []*models.Room
	for _, r := range f.rooms {
		if r.IsPublic {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	return out, nil
}

func (f *fakeStore) TouchRoom(_ context.Context, id string) error {
	room, ok := f.rooms[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	room.LastActive = time.Now()
	return nil
}

func (f *fakeStore) UpsertParticipant(_ context.Context, userID, roomID string) error {
	if f.participants[roomID] == nil {
		f.participants[roomID] = make(map[string]bool)
	}
	f.participants[roomID][userID] = true
	return nil
}

func (f *fakeStore) CountParticipants(_ context.Context, roomID string) (int64, error) {
	return int64(len(f.participants[roomID])), nil
}

type fakeCache struct {
	rooms  map[string]*models.Room
	counts map[string]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{rooms: make(map[string]*models.Room), counts: make(map[string]int)}
}

func (f *fakeCache) CacheRoom(_ context.Context, room *models.Room) error {
	f.rooms[room.ID.String()] = room
	return nil
}

func (f *fakeCache) CachedRoom(_ context.Context, roomID string) (*models.Room, error) {
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return room, nil
}

func (f *fakeCache) InvalidateRoom(_ context.Context, roomID string) error {
	delete(f.rooms, roomID)
	return nil
}

func (f *fakeCache) OnlineCounts(_ context.Context, roomIDs []string) (map[string]int, error) {
	out := make(map[string]int)
	for _, id := range roomIDs {
		out[id] = f.counts[id]
	}
	return out, nil
}

func newTestService() (*Service, *fakeStore, *fakeCache) {
	store := newFakeStore()
	cache := newFakeCache()
	return NewService(store, cache, events.Nop{}), store, cache
}

func TestCreateRoom(t *testing.T) {
	svc, store, cache := newTestService()

	room, err := svc.CreateRoom(context.Background(), "Movie Night", true)
	require.NoError(t, err)

	assert.Equal(t, "Movie Night", room.Name)
	assert.True(t, room.IsPublic)
	assert.False(t, room.LastActive.IsZero())
	assert.Contains(t, store.rooms, room.ID.String())
	assert.Contains(t, cache.rooms, room.ID.String())
}

func TestGetRoom_FallsBackToStore(t *testing.T) {
	svc, store, cache := newTestService()

	room := &models.Room{ID: uuid.New(), Name: "quiet room"}
	store.rooms[room.ID.String()] = room

	got, err := svc.GetRoom(context.Background(), room.ID.String())
	require.NoError(t, err)
	assert.Equal(t, room.Name, got.Name)
	// read-through populated the cache
	assert.Contains(t, cache.rooms, room.ID.String())
}

func TestGetRoom_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.GetRoom(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestListPublicRooms_OrderedAndAnnotated(t *testing.T) {
	svc, store, cache := newTestService()

	older := &models.Room{ID: uuid.New(), Name: "older", IsPublic: true, LastActive: time.Now().Add(-time.Hour)}
	newer := &models.Room{ID: uuid.New(), Name: "newer", IsPublic: true, LastActive: time.Now()}
	hidden := &models.Room{ID: uuid.New(), Name: "hidden", IsPublic: false, LastActive: time.Now()}
	for _, r := range []*models.Room{older, newer, hidden} {
		store.rooms[r.ID.String()] = r
	}
	cache.counts[newer.ID.String()] = 3

	rooms, err := svc.ListPublicRooms(context.Background())
	require.NoError(t, err)

	require.Len(t, rooms, 2)
	assert.Equal(t, "newer", rooms[0].Name)
	assert.Equal(t, 3, rooms[0].ParticipantCount)
	assert.Equal(t, "older", rooms[1].Name)
	assert.Equal(t, 0, rooms[1].ParticipantCount)
}

func TestJoin_Idempotent(t *testing.T) {
	svc, _, _ := newTestService()

	room, err := svc.CreateRoom(context.Background(), "Movie Night", true)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Join(context.Background(), room.ID.String(), "u1"))
	}

	count, err := svc.MemberCount(context.Background(), room.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTouchLastActive_InvalidatesCache(t *testing.T) {
	svc, _, cache := newTestService()

	room, err := svc.CreateRoom(context.Background(), "Movie Night", true)
	require.NoError(t, err)
	require.Contains(t, cache.rooms, room.ID.String())

	require.NoError(t, svc.TouchLastActive(context.Background(), room.ID.String()))
	assert.NotContains(t, cache.rooms, room.ID.String())
}
