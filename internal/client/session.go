package client

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/greenwinther/VibeWithMe/internal/chat"
	"github.com/greenwinther/VibeWithMe/internal/playback"
	"github.com/greenwinther/VibeWithMe/internal/playlist"
	"github.com/greenwinther/VibeWithMe/internal/ws"
	"github.com/greenwinther/VibeWithMe/pkg/models"
)

// Session is one room-view connection: it dials the server, sends join-room,
// and keeps a State mirror reconciled with the broadcast streams. Intents
// (chat send, video add, playback control) are transmitted immediately;
// optimistic local effects are reconciled against the server echoes.
type Session struct {
	conn  *websocket.Conn
	State *State

	roomID   string
	userID   string
	userName string

	// AutoPlay turns the "queue populated and not playing" condition into a
	// play-pause request. The intent always goes through the server so other
	// participants never see a false synchronized state.
	AutoPlay bool

	writeMu sync.Mutex
	done    chan struct{}
}

func Dial(ctx context.Context, url, roomID, userID, userName string) (*Session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	s := &Session{
		conn:     conn,
		State:    NewState(),
		roomID:   roomID,
		userID:   userID,
		userName: userName,
		done:     make(chan struct{}),
	}
	go s.readLoop()

	if err := s.sendEvent(ws.EventJoinRoom, ws.JoinRoomPayload{
		RoomID:   roomID,
		UserID:   userID,
		UserName: userName,
	}); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var env ws.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Msg("session: malformed server frame")
			continue
		}
		if env.Type == ws.EventError {
			var p ws.ErrorPayload
			if json.Unmarshal(env.Data, &p) == nil {
				log.Warn().Str("message", p.Message).Msg("session: server error event")
			}
			continue
		}
		if err := s.State.Apply(env); err != nil {
			log.Warn().Err(err).Str("type", env.Type).Msg("session: failed to apply event")
			continue
		}
		if env.Type == playlist.EventUpdate && s.AutoPlay && s.State.WantsAutoplay() {
			if err := s.PlayPause(true); err != nil {
				log.Warn().Err(err).Msg("session: autoplay request failed")
			}
		}
	}
}

// SendChat transmits immediately and does not append locally: the server
// echoes the persisted message back to the sender, and State deduplicates by
// id in case a local echo is ever added. Blank text is suppressed here, at
// the edge; the relay itself accepts any string.
func (s *Session) SendChat(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.sendEvent(chat.EventMessage, ws.ChatMessagePayload{
		RoomID: s.roomID,
		UserID: s.userID,
		Text:   text,
	})
}

// AddVideo appends locally for a snappy UI, then transmits. The following
// playlist:update snapshot supersedes the optimistic entry.
func (s *Session) AddVideo(video models.VideoDTO) error {
	s.State.OptimisticAdd(video, models.UserRef{ID: s.userID, Name: s.userName})
	return s.sendEvent(playlist.EventAdd, ws.VideoAddPayload{
		RoomID: s.roomID,
		UserID: s.userID,
		Video:  video,
	})
}

func (s *Session) PlayPause(playing bool) error {
	return s.sendEvent(playback.EventPlayPause, ws.PlayPausePayload{RoomID: s.roomID, Playing: playing})
}

func (s *Session) Seek(t float64) error {
	return s.sendEvent(playback.EventSeek, ws.SeekPayload{RoomID: s.roomID, Time: t})
}

func (s *Session) Advance(newIndex int) error {
	return s.sendEvent(playlist.EventAdvance, ws.AdvancePayload{RoomID: s.roomID, NewIndex: newIndex})
}

func (s *Session) FetchHistory() error {
	return s.sendEvent(chat.EventFetch, ws.RoomRefPayload{RoomID: s.roomID})
}

func (s *Session) FetchQueue() error {
	return s.sendEvent(playlist.EventFetch, ws.RoomRefPayload{RoomID: s.roomID})
}

// Signal forwards an opaque payload to another connection by id.
func (s *Session) Signal(to string, signal json.RawMessage) error {
	return s.sendEvent(ws.EventSignal, ws.SignalPayload{To: to, Signal: signal})
}

func (s *Session) sendEvent(event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(ws.Envelope{Type: event, Data: raw})
}

// Done is closed when the server connection drops.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Close() error {
	return s.conn.Close()
}
