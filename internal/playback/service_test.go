package playback

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/greenwinther/VibeWithMe/internal/room"
	"github.com/greenwinther/VibeWithMe/pkg/events"
	"github.com/greenwinther/VibeWithMe/pkg/models"
)

type fakeStore struct {
	rooms map[string]*models.Room
}

func newFakeStore() *fakeStore {
	return &fakeStore{rooms: make(map[string]*models.Room)}
}

func (f *fakeStore) GetRoomByID(_ context.Context, id string) (*models.Room, error) {
	r, ok := f.rooms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r, nil
}

func (f *fakeStore) SetRoomPlaying(_ context.Context, id string, playing bool) error {
	r, ok := f.rooms[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.IsPlaying = playing
	return nil
}

func (f *fakeStore) SetRoomVideoTime(_ context.Context, id string, t float64) error {
	r, ok := f.rooms[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.CurrentVideoTime = t
	return nil
}

type recordedBroadcast struct {
	roomID string
	event  string
	data   interface{}
}

type fakeBroadcaster struct {
	sent []recordedBroadcast
}

func (f *fakeBroadcaster) ToRoom(roomID, event string, data interface{}) {
	f.sent = append(f.sent, recordedBroadcast{roomID: roomID, event: event, data: data})
}

type fakeCache struct {
	invalidated []string
}

func (f *fakeCache) InvalidateRoom(_ context.Context, roomID string) error {
	f.invalidated = append(f.invalidated, roomID)
	return nil
}

func newTestService() (*Service, *fakeStore, *fakeCache, *fakeBroadcaster, *models.Room) {
	store := newFakeStore()
	cache := &fakeCache{}
	bc := &fakeBroadcaster{}
	r := &models.Room{ID: uuid.New(), Name: "Movie Night"}
	store.rooms[r.ID.String()] = r
	return NewService(store, cache, bc, events.Nop{}), store, cache, bc, r
}

func TestPlayPause_PersistsThenBroadcasts(t *testing.T) {
	svc, store, cache, bc, r := newTestService()

	require.NoError(t, svc.PlayPause(context.Background(), r.ID.String(), true))
	assert.True(t, store.rooms[r.ID.String()].IsPlaying)

	require.Len(t, bc.sent, 1)
	assert.Equal(t, EventPlayPause, bc.sent[0].event)
	assert.Equal(t, PlayPausePayload{Playing: true}, bc.sent[0].data)

	require.NoError(t, svc.PlayPause(context.Background(), r.ID.String(), false))
	assert.False(t, store.rooms[r.ID.String()].IsPlaying)

	// each persisted toggle drops the cached room row
	assert.Len(t, cache.invalidated, 2)
}

func TestSeek_PersistsThenBroadcasts(t *testing.T) {
	svc, store, cache, bc, r := newTestService()

	require.NoError(t, svc.Seek(context.Background(), r.ID.String(), 42.5))
	assert.Equal(t, 42.5, store.rooms[r.ID.String()].CurrentVideoTime)

	require.Len(t, bc.sent, 1)
	assert.Equal(t, EventSeek, bc.sent[0].event)
	assert.Equal(t, SeekPayload{Time: 42.5}, bc.sent[0].data)
	assert.Len(t, cache.invalidated, 1)
}

func TestPlayPause_UnknownRoom(t *testing.T) {
	svc, _, cache, bc, _ := newTestService()

	err := svc.PlayPause(context.Background(), uuid.New().String(), true)
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
	assert.Empty(t, bc.sent)
	assert.Empty(t, cache.invalidated)
}

func TestSnapshot_ReflectsPersistedState(t *testing.T) {
	svc, _, _, _, r := newTestService()

	require.NoError(t, svc.PlayPause(context.Background(), r.ID.String(), true))
	require.NoError(t, svc.Seek(context.Background(), r.ID.String(), 90))
	r.CurrentVideoPosition = 2

	snap, err := svc.Snapshot(context.Background(), r.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.RoomStateDTO{VideoIndex: 2, Time: 90, Playing: true}, snap)
}

func TestSnapshot_UnknownRoom(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	_, err := svc.Snapshot(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}
