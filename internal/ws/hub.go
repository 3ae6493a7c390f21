package ws

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/greenwinther/VibeWithMe/internal/chat"
	"github.com/greenwinther/VibeWithMe/internal/metrics"
	"github.com/greenwinther/VibeWithMe/internal/playback"
	"github.com/greenwinther/VibeWithMe/internal/playlist"
	"github.com/greenwinther/VibeWithMe/internal/room"
	"github.com/greenwinther/VibeWithMe/internal/user"
)

// Presence mirrors live connection counts into Redis so the REST layer can
// annotate room listings without touching the hub.
type Presence interface {
	ConnJoined(ctx context.Context, roomID string) (int64, error)
	ConnLeft(ctx context.Context, roomID string) (int64, error)
}

// Hub owns the broadcast groups: the set of live connections bound to each
// room. It also implements the Broadcaster interface the chat, playlist and
// playback services fan out through.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Client]bool
	conns  map[string]*Client

	roomSvc     *room.Service
	userSvc     *user.Service
	chatSvc     *chat.Service
	playlistSvc *playlist.Service
	playbackSvc *playback.Service
	presence    Presence
}

func NewHub(roomSvc *room.Service, userSvc *user.Service, chatSvc *chat.Service, playlistSvc *playlist.Service, playbackSvc *playback.Service, presence Presence) *Hub {
	return &Hub{
		groups:      make(map[string]map[*Client]bool),
		conns:       make(map[string]*Client),
		roomSvc:     roomSvc,
		userSvc:     userSvc,
		chatSvc:     chatSvc,
		playlistSvc: playlistSvc,
		playbackSvc: playbackSvc,
		presence:    presence,
	}
}

// ToRoom broadcasts an event to every connection in the room, sender
// included. All state-mutating broadcasts use this path; clients reconcile
// echoes idempotently.
func (h *Hub) ToRoom(roomID, event string, data interface{}) {
	msg, err := marshalEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal broadcast")
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.groups[roomID]))
	for c := range h.groups[roomID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(msg)
	}
}

// toOthers is used only for the user-joined notice, which is a notification
// about the sender rather than state the sender needs to converge on.
func (h *Hub) toOthers(roomID string, except *Client, event string, data interface{}) {
	msg, err := marshalEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal broadcast")
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.groups[roomID]))
	for c := range h.groups[roomID] {
		if c != except {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.enqueue(msg)
	}
}

func (h *Hub) connByID(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[id]
}

func (h *Hub) addConn(c *Client) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	metrics.WsConnections.Inc()
}

// register binds a connection to a room's broadcast group, detaching it from
// any previous group first so a connection is never in two groups at once.
// The presence counter moves only when membership actually changes: re-joining
// the same room is a no-op, switching rooms decrements the old room.
func (h *Hub) register(c *Client, roomID string) {
	var left string
	entered := false

	h.mu.Lock()
	if c.roomID != "" && c.roomID != roomID {
		if clients, ok := h.groups[c.roomID]; ok {
			if clients[c] {
				delete(clients, c)
				left = c.roomID
			}
			if len(clients) == 0 {
				delete(h.groups, c.roomID)
			}
		}
	}
	if _, ok := h.groups[roomID]; !ok {
		h.groups[roomID] = make(map[*Client]bool)
	}
	if !h.groups[roomID][c] {
		h.groups[roomID][c] = true
		entered = true
	}
	c.roomID = roomID
	h.mu.Unlock()

	if left != "" {
		if _, err := h.presence.ConnLeft(context.Background(), left); err != nil {
			log.Warn().Err(err).Str("room_id", left).Msg("failed to drop presence count")
		}
	}
	if entered {
		if _, err := h.presence.ConnJoined(context.Background(), roomID); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("failed to bump presence count")
		}
	}
}

// unregister drops the connection. Membership rows are left alone: a
// participant record survives disconnect, and stale rooms are reclaimed by
// the periodic sweep.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.conns, c.id)
	wasJoined := false
	if c.roomID != "" {
		if clients, ok := h.groups[c.roomID]; ok {
			if _, ok := clients[c]; ok {
				delete(clients, c)
				wasJoined = true
			}
			if len(clients) == 0 {
				delete(h.groups, c.roomID)
			}
		}
	}
	h.mu.Unlock()

	// A broadcast may have snapshotted this client before it left the group;
	// the closed flag keeps its enqueue from hitting the closed channel.
	c.sendMu.Lock()
	c.closed = true
	close(c.send)
	c.sendMu.Unlock()

	metrics.WsConnections.Dec()

	if wasJoined {
		if _, err := h.presence.ConnLeft(context.Background(), c.roomID); err != nil {
			log.Warn().Err(err).Str("room_id", c.roomID).Msg("failed to drop presence count")
		}
	}
}

// Online reports live connections for one room, for tests and diagnostics.
func (h *Hub) Online(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[roomID])
}

// Relay is a Broadcaster handed to the services before the hub exists; the
// hub needs the services and the services need the hub, so the relay is
// bound in a second wiring step. Broadcasts before Bind are dropped, which
// can only happen while the process is still starting up.
type Relay struct {
	mu  sync.RWMutex
	hub *Hub
}

func NewRelay() *Relay { return &Relay{} }

func (r *Relay) Bind(h *Hub) {
	r.mu.Lock()
	r.hub = h
	r.mu.Unlock()
}

func (r *Relay) ToRoom(roomID, event string, data interface{}) {
	r.mu.RLock()
	hub := r.hub
	r.mu.RUnlock()
	if hub != nil {
		hub.ToRoom(roomID, event, data)
	}
}
