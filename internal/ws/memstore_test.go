package ws

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/greenwinther/VibeWithMe/pkg/models"
)

// memStore backs every service with the same in-memory state, mirroring the
// MySQL store's semantics: max+1 position assignment, record-not-found on
// missing rooms, advance resetting the video time.
type memStore struct {
	mu           sync.Mutex
	rooms        map[string]*models.Room
	users        map[string]*models.User
	participants map[string]map[string]bool
	videos       map[string][]*models.Video
	messages     map[string][]*models.Message
}

func newMemStore() *memStore {
	return &memStore{
		rooms:        make(map[string]*models.Room),
		users:        make(map[string]*models.User),
		participants: make(map[string]map[string]bool),
		videos:       make(map[string][]*models.Video),
		messages:     make(map[string][]*models.Message),
	}
}

func (m *memStore) CreateRoom(_ context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID.String()] = room
	return nil
}

func (m *memStore) GetRoomByID(_ context.Context, id string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListPublicRooms(_ context.Context) ([]*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Room
	for _, r := range m.rooms {
		if r.IsPublic {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	return out, nil
}

func (m *memStore) TouchRoom(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.LastActive = time.Now()
	return nil
}

func (m *memStore) SetRoomPlaying(_ context.Context, id string, playing bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.IsPlaying = playing
	r.LastActive = time.Now()
	return nil
}

func (m *memStore) SetRoomVideoTime(_ context.Context, id string, t float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.CurrentVideoTime = t
	r.LastActive = time.Now()
	return nil
}

func (m *memStore) SetRoomVideoPosition(_ context.Context, id string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.CurrentVideoPosition = index
	r.CurrentVideoTime = 0
	r.LastActive = time.Now()
	return nil
}

func (m *memStore) UpsertParticipant(_ context.Context, userID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.participants[roomID] == nil {
		m.participants[roomID] = make(map[string]bool)
	}
	m.participants[roomID][userID] = true
	return nil
}

func (m *memStore) CountParticipants(_ context.Context, roomID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.participants[roomID])), nil
}

func (m *memStore) UpsertUser(_ context.Context, id, name string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.Name = name
		cp := *u
		return &cp, nil
	}
	u := &models.User{ID: id, Name: name}
	m.users[id] = u
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdateUser(_ context.Context, id string, name, avatarURL *string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if name != nil {
		u.Name = *name
	}
	if avatarURL != nil {
		u.AvatarURL = avatarURL
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) AddVideo(_ context.Context, video *models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rid := video.RoomID.String()
	r, ok := m.rooms[rid]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	max := -1
	for _, v := range m.videos[rid] {
		if v.Position > max {
			max = v.Position
		}
	}
	video.Position = max + 1
	m.videos[rid] = append(m.videos[rid], video)
	r.LastActive = time.Now()
	return nil
}

func (m *memStore) GetPlaylist(_ context.Context, roomID string) ([]*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Video, 0, len(m.videos[roomID]))
	for _, v := range m.videos[roomID] {
		cp := *v
		if u, ok := m.users[v.AddedByID]; ok {
			cp.AddedBy = *u
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memStore) CreateMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rid := msg.RoomID.String()
	m.messages[rid] = append(m.messages[rid], msg)
	return nil
}

func (m *memStore) GetMessages(_ context.Context, roomID string) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Message, 0, len(m.messages[roomID]))
	for _, msg := range m.messages[roomID] {
		cp := *msg
		if u, ok := m.users[msg.SenderID]; ok {
			cp.Sender = *u
		}
		out = append(out, &cp)
	}
	return out, nil
}

// memPresence satisfies both the hub's presence counters and the room
// service's cache interface. The cache side always misses, forcing every
// read through the store.
type memPresence struct {
	mu     sync.Mutex
	online map[string]int64
}

func newMemPresence() *memPresence {
	return &memPresence{online: make(map[string]int64)}
}

func (p *memPresence) ConnJoined(_ context.Context, roomID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[roomID]++
	return p.online[roomID], nil
}

func (p *memPresence) ConnLeft(_ context.Context, roomID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online[roomID] > 0 {
		p.online[roomID]--
	}
	return p.online[roomID], nil
}

func (p *memPresence) CacheRoom(context.Context, *models.Room) error { return nil }

func (p *memPresence) CachedRoom(context.Context, string) (*models.Room, error) {
	return nil, gorm.ErrRecordNotFound
}

func (p *memPresence) InvalidateRoom(context.Context, string) error { return nil }

func (p *memPresence) OnlineCounts(_ context.Context, roomIDs []string) (map[string]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int)
	for _, id := range roomIDs {
		out[id] = int(p.online[id])
	}
	return out, nil
}
