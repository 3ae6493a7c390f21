package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/greenwinther/VibeWithMe/internal/chat"
	"github.com/greenwinther/VibeWithMe/internal/playback"
	"github.com/greenwinther/VibeWithMe/internal/playlist"
	"github.com/greenwinther/VibeWithMe/internal/ws"
	"github.com/greenwinther/VibeWithMe/pkg/models"
)

// State is the local mirror of one room: message log, queue, playback tuple.
// Server broadcasts are merged in through Apply; self-initiated actions may
// be applied optimistically and are reconciled against the authoritative
// echoes. The invariant is that a message id is never shown twice, whatever
// the arrival order of the optimistic copy, the server echo and re-delivered
// history.
type State struct {
	mu       sync.RWMutex
	messages []models.ChatMessageDTO
	seen     map[string]struct{}

	queue      []models.PlaylistItemDTO
	videoIndex int
	videoTime  float64
	playing    bool
}

func NewState() *State {
	return &State{seen: make(map[string]struct{})}
}

// Apply merges one server event into the mirror. Unknown event types are
// ignored so the mirror stays forward-compatible with new broadcasts.
func (s *State) Apply(env ws.Envelope) error {
	switch env.Type {
	case playback.EventRoomState:
		var st models.RoomStateDTO
		if err := json.Unmarshal(env.Data, &st); err != nil {
			return fmt.Errorf("bad room:state payload: %w", err)
		}
		s.mu.Lock()
		s.videoIndex = st.VideoIndex
		s.videoTime = st.Time
		s.playing = st.Playing
		s.mu.Unlock()

	case chat.EventHistory:
		var history []models.ChatMessageDTO
		if err := json.Unmarshal(env.Data, &history); err != nil {
			return fmt.Errorf("bad chat:history payload: %w", err)
		}
		s.mu.Lock()
		for _, msg := range history {
			s.appendLocked(msg)
		}
		s.mu.Unlock()

	case chat.EventMessage:
		var msg models.ChatMessageDTO
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return fmt.Errorf("bad chat:message payload: %w", err)
		}
		s.mu.Lock()
		s.appendLocked(msg)
		s.mu.Unlock()

	case playlist.EventUpdate:
		var queue []models.PlaylistItemDTO
		if err := json.Unmarshal(env.Data, &queue); err != nil {
			return fmt.Errorf("bad playlist:update payload: %w", err)
		}
		// Full-snapshot reconciliation: the broadcast queue supersedes any
		// optimistic entries wholesale, it is not merged.
		s.mu.Lock()
		s.queue = queue
		s.mu.Unlock()

	case playlist.EventAdvance:
		var p playlist.AdvancePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("bad video:advance payload: %w", err)
		}
		s.mu.Lock()
		s.videoIndex = p.NewIndex
		s.videoTime = 0
		s.mu.Unlock()

	case playback.EventPlayPause:
		var p playback.PlayPausePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("bad play-pause payload: %w", err)
		}
		s.mu.Lock()
		s.playing = p.Playing
		s.mu.Unlock()

	case playback.EventSeek:
		var p playback.SeekPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("bad seek payload: %w", err)
		}
		s.mu.Lock()
		s.videoTime = p.Time
		s.mu.Unlock()
	}
	return nil
}

// appendLocked adds a message unless its id was already applied.
func (s *State) appendLocked(msg models.ChatMessageDTO) {
	if _, ok := s.seen[msg.ID]; ok {
		return
	}
	s.seen[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg)
}

// AppendLocal records a locally-echoed optimistic message. The server echo
// carrying the same id is deduplicated on arrival, and vice versa.
func (s *State) AppendLocal(msg models.ChatMessageDTO) {
	s.mu.Lock()
	s.appendLocked(msg)
	s.mu.Unlock()
}

// OptimisticAdd appends a queue entry before server confirmation, guessing
// the next position. The next playlist:update snapshot replaces it with the
// authoritative entry.
func (s *State) OptimisticAdd(video models.VideoDTO, addedBy models.UserRef) {
	s.mu.Lock()
	position := 0
	if n := len(s.queue); n > 0 {
		position = s.queue[n-1].Position + 1
	}
	s.queue = append(s.queue, models.PlaylistItemDTO{
		Position: position,
		Video:    video,
		AddedBy:  addedBy,
	})
	s.mu.Unlock()
}

// WantsAutoplay reports the "queue populated and not playing" condition. The
// caller must route the resulting intent through the normal play-pause
// request path, never by flipping local state silently.
func (s *State) WantsAutoplay() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue) > 0 && !s.playing
}

func (s *State) Messages() []models.ChatMessageDTO {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatMessageDTO, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *State) Queue() []models.PlaylistItemDTO {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PlaylistItemDTO, len(s.queue))
	copy(out, s.queue)
	return out
}

func (s *State) VideoIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.videoIndex
}

func (s *State) VideoTime() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.videoTime
}

func (s *State) Playing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playing
}
