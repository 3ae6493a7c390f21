package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenwinther/VibeWithMe/pkg/events"
)

type fakeStore struct {
	lastActive map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{lastActive: make(map[string]time.Time)}
}

func (f *fakeStore) StaleRoomIDs(_ context.Context, cutoff time.Time) ([]string, error) {
	var out []string
	for id, at := range f.lastActive {
		if at.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteRooms(_ context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := f.lastActive[id]; ok {
			delete(f.lastActive, id)
			n++
		}
	}
	return n, nil
}

type fakePresence struct {
	cleared []string
}

func (f *fakePresence) ClearRooms(_ context.Context, roomIDs []string) error {
	f.cleared = append(f.cleared, roomIDs...)
	return nil
}

func TestHandleSweep_DeletesOnlyStaleRooms(t *testing.T) {
	store := newFakeStore()
	presence := &fakePresence{}
	sweeper := NewSweeper(store, presence, events.Nop{}, 24*time.Hour)

	store.lastActive["stale"] = time.Now().Add(-48 * time.Hour)
	store.lastActive["fresh"] = time.Now()

	err := sweeper.HandleSweep(context.Background(), asynq.NewTask(TypeSweep, nil))
	require.NoError(t, err)

	assert.NotContains(t, store.lastActive, "stale")
	assert.Contains(t, store.lastActive, "fresh")
	assert.Equal(t, []string{"stale"}, presence.cleared)
}

func TestHandleSweep_NothingStale(t *testing.T) {
	store := newFakeStore()
	presence := &fakePresence{}
	sweeper := NewSweeper(store, presence, events.Nop{}, 24*time.Hour)

	store.lastActive["fresh"] = time.Now()

	err := sweeper.HandleSweep(context.Background(), asynq.NewTask(TypeSweep, nil))
	require.NoError(t, err)

	assert.Len(t, store.lastActive, 1)
	assert.Empty(t, presence.cleared)
}

func TestHandleSweep_ActivityResetsClock(t *testing.T) {
	store := newFakeStore()
	sweeper := NewSweeper(store, &fakePresence{}, events.Nop{}, 24*time.Hour)

	store.lastActive["r1"] = time.Now().Add(-48 * time.Hour)
	// a chat post or video add bumps last_active before the sweep fires
	store.lastActive["r1"] = time.Now()

	require.NoError(t, sweeper.HandleSweep(context.Background(), asynq.NewTask(TypeSweep, nil)))
	assert.Contains(t, store.lastActive, "r1")
}
