package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/greenwinther/VibeWithMe/internal/metrics"
	"github.com/greenwinther/VibeWithMe/pkg/events"
)

// TypeSweep is the asynq task type for the staleness sweep.
const TypeSweep = "rooms:sweep"

type Store interface {
	StaleRoomIDs(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteRooms(ctx context.Context, ids []string) (int64, error)
}

type Presence interface {
	ClearRooms(ctx context.Context, roomIDs []string) error
}

// Sweeper deletes rooms whose last-active timestamp is older than the
// configured TTL, cascading away their participants, videos and messages.
// It runs as an asynq task on a concurrency-1 queue, which keeps the sweep
// single-flight; DeleteRooms is delete-if-exists, so a room removed by a
// concurrent path mid-sweep is tolerated.
type Sweeper struct {
	store    Store
	presence Presence
	journal  events.Publisher
	roomTTL  time.Duration
}

func NewSweeper(store Store, presence Presence, journal events.Publisher, roomTTL time.Duration) *Sweeper {
	return &Sweeper{store: store, presence: presence, journal: journal, roomTTL: roomTTL}
}

func (s *Sweeper) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	cutoff := time.Now().Add(-s.roomTTL)

	ids, err := s.store.StaleRoomIDs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to scan stale rooms: %w", err)
	}
	if len(ids) == 0 {
		log.Debug().Msg("cleanup: no stale rooms found")
		return nil
	}

	deleted, err := s.store.DeleteRooms(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to delete stale rooms: %w", err)
	}

	if err := s.presence.ClearRooms(ctx, ids); err != nil {
		log.Warn().Err(err).Msg("cleanup: failed to clear presence state")
	}

	metrics.RoomsSweptTotal.Add(float64(deleted))
	log.Info().Int64("deleted", deleted).Msg("cleanup: deleted stale rooms")

	if err := s.journal.Publish(ctx, events.EventTypeRoomsSwept, "", "", map[string]interface{}{
		"deleted": deleted,
	}); err != nil {
		log.Warn().Err(err).Msg("cleanup: failed to journal sweep")
	}
	return nil
}

// Mux returns the handler mux for the sweep worker.
func (s *Sweeper) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSweep, s.HandleSweep)
	return mux
}

// RegisterSchedule enqueues the sweep task on a fixed interval, independent
// of any client connection.
func RegisterSchedule(scheduler *asynq.Scheduler, interval time.Duration) error {
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := scheduler.Register(spec, asynq.NewTask(TypeSweep, nil)); err != nil {
		return fmt.Errorf("failed to register sweep schedule: %w", err)
	}
	return nil
}
