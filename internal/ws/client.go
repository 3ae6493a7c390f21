package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/greenwinther/VibeWithMe/internal/chat"
	"github.com/greenwinther/VibeWithMe/internal/metrics"
	"github.com/greenwinther/VibeWithMe/internal/playback"
	"github.com/greenwinther/VibeWithMe/internal/playlist"
	"github.com/greenwinther/VibeWithMe/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// Chat sends per connection: one every 300ms sustained, bursts of 5.
	chatRateInterval = 300 * time.Millisecond
	chatRateBurst    = 5
)

// Client is one websocket connection. It starts unbound; a join-room event
// binds it to a (room, user) pair. Events are dispatched sequentially from
// the read pump, so each one runs to completion, persistence included,
// before the next event on this connection is processed.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	id     string
	roomID string
	userID string

	chatLimiter *rate.Limiter
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		id:          uuid.New().String(),
		chatLimiter: rate.NewLimiter(rate.Every(chatRateInterval), chatRateBurst),
	}
}

func (c *Client) joined() bool { return c.roomID != "" }

// enqueue hands a frame to the write pump without blocking. A slow client
// loses the frame; the full-snapshot broadcast model lets it catch up on the
// next update. A client that unregistered between a broadcast's group
// snapshot and this call drops the frame instead of hitting the closed
// channel.
func (c *Client) enqueue(msg []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Warn().Str("conn_id", c.id).Msg("client send buffer full, dropping frame")
	}
}

func (c *Client) sendEvent(event string, data interface{}) {
	msg, err := marshalEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal event")
		return
	}
	c.enqueue(msg)
}

func (c *Client) sendError(message string) {
	c.sendEvent(EventError, ErrorPayload{Message: message})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("conn_id", c.id).Msg("websocket read error")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.sendError("malformed event")
			continue
		}

		metrics.WsEventsTotal.WithLabelValues(env.Type).Inc()
		c.dispatch(env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound event. Errors never tear down the shared
// process: they are acknowledged to the originating connection as an error
// event and the loop moves on.
func (c *Client) dispatch(env Envelope) {
	ctx := context.Background()

	if env.Type == EventJoinRoom {
		c.handleJoin(ctx, env.Data)
		return
	}
	if !c.joined() {
		c.sendError("join a room first")
		return
	}

	switch env.Type {
	case chat.EventMessage:
		c.handleChatMessage(ctx, env.Data)
	case chat.EventFetch:
		c.handleChatFetch(ctx)
	case playlist.EventAdd:
		c.handleVideoAdd(ctx, env.Data)
	case playlist.EventFetch:
		c.handlePlaylistFetch(ctx)
	case playlist.EventAdvance:
		c.handleAdvance(ctx, env.Data)
	case playback.EventPlayPause:
		c.handlePlayPause(ctx, env.Data)
	case playback.EventSeek:
		c.handleSeek(ctx, env.Data)
	case EventSignal:
		c.handleSignal(env.Data)
	default:
		c.sendError("unknown event type: " + env.Type)
	}
}

// handleJoin runs the Disconnected -> Joining -> Joined transition: bind the
// broadcast group, touch the room, upsert user and membership, then emit the
// three private snapshots before the public join notice. Snapshot order
// matters: the client must hold baseline state before live deltas arrive.
func (c *Client) handleJoin(ctx context.Context, data json.RawMessage) {
	var p JoinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.UserID == "" {
		c.sendError("join-room requires roomId and userId")
		return
	}

	if _, err := c.hub.roomSvc.GetRoom(ctx, p.RoomID); err != nil {
		c.replyErr(err)
		return
	}

	c.userID = p.UserID
	c.hub.register(c, p.RoomID)

	if err := c.hub.roomSvc.TouchLastActive(ctx, p.RoomID); err != nil {
		log.Warn().Err(err).Str("room_id", p.RoomID).Msg("failed to touch room on join")
	}
	if _, err := c.hub.userSvc.EnsureUser(ctx, p.UserID, p.UserName); err != nil {
		c.replyErr(err)
		return
	}
	if err := c.hub.roomSvc.Join(ctx, p.RoomID, p.UserID); err != nil {
		c.replyErr(err)
		return
	}

	state, err := c.hub.playbackSvc.Snapshot(ctx, p.RoomID)
	if err != nil {
		c.replyErr(err)
		return
	}
	c.sendEvent(playback.EventRoomState, state)

	history, err := c.hub.chatSvc.History(ctx, p.RoomID)
	if err != nil {
		c.replyErr(err)
		return
	}
	c.sendEvent(chat.EventHistory, history)

	queue, err := c.hub.playlistSvc.FetchQueue(ctx, p.RoomID)
	if err != nil {
		c.replyErr(err)
		return
	}
	c.sendEvent(playlist.EventUpdate, queue)

	c.hub.toOthers(p.RoomID, c, EventUserJoined, UserJoinedPayload{UserID: p.UserID, ConnID: c.id})

	log.Info().Str("room_id", p.RoomID).Str("user_id", p.UserID).Str("conn_id", c.id).Msg("client joined room")
}

func (c *Client) handleChatMessage(ctx context.Context, data json.RawMessage) {
	if !c.chatLimiter.Allow() {
		c.sendError("rate limited")
		return
	}
	var p ChatMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError("malformed chat:message payload")
		return
	}
	if _, err := c.hub.chatSvc.Post(ctx, c.roomID, c.userID, p.Text); err != nil {
		c.replyErr(err)
	}
}

func (c *Client) handleChatFetch(ctx context.Context) {
	history, err := c.hub.chatSvc.History(ctx, c.roomID)
	if err != nil {
		c.replyErr(err)
		return
	}
	c.sendEvent(chat.EventHistory, history)
}

func (c *Client) handleVideoAdd(ctx context.Context, data json.RawMessage) {
	var p VideoAddPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError("malformed video:add payload")
		return
	}
	if _, err := c.hub.playlistSvc.AddVideo(ctx, c.roomID, c.userID, p.Video); err != nil {
		c.replyErr(err)
	}
}

func (c *Client) handlePlaylistFetch(ctx context.Context) {
	queue, err := c.hub.playlistSvc.FetchQueue(ctx, c.roomID)
	if err != nil {
		c.replyErr(err)
		return
	}
	c.sendEvent(playlist.EventUpdate, queue)
}

func (c *Client) handleAdvance(ctx context.Context, data json.RawMessage) {
	var p AdvancePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError("malformed video:advance payload")
		return
	}
	if err := c.hub.playlistSvc.Advance(ctx, c.roomID, p.NewIndex); err != nil {
		c.replyErr(err)
	}
}

func (c *Client) handlePlayPause(ctx context.Context, data json.RawMessage) {
	var p PlayPausePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError("malformed play-pause payload")
		return
	}
	if err := c.hub.playbackSvc.PlayPause(ctx, c.roomID, p.Playing); err != nil {
		c.replyErr(err)
	}
}

func (c *Client) handleSeek(ctx context.Context, data json.RawMessage) {
	var p SeekPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError("malformed seek payload")
		return
	}
	if err := c.hub.playbackSvc.Seek(ctx, c.roomID, p.Time); err != nil {
		c.replyErr(err)
	}
}

func (c *Client) handleSignal(data json.RawMessage) {
	var p SignalPayload
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		c.sendError("malformed signal payload")
		return
	}
	target := c.hub.connByID(p.To)
	if target == nil {
		c.sendError("signal target not connected")
		return
	}
	target.sendEvent(EventSignal, SignalPayload{From: c.id, Signal: p.Signal})
}

func (c *Client) replyErr(err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		c.sendError("room not found")
	case errors.Is(err, playlist.ErrIndexOutOfRange):
		c.sendError("video index out of range")
	default:
		log.Error().Err(err).Str("conn_id", c.id).Str("room_id", c.roomID).Msg("event handling failed")
		c.sendError("internal error")
	}
}
