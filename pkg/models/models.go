package models

import (
	"time"

	"github.com/google/uuid"
)

// User identity is generated client-side and persisted on the device, so the
// primary key is whatever string the client first presented, not a server UUID.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name"`
	AvatarURL *string   `json:"avatarUrl"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Room struct {
	ID                   uuid.UUID `json:"id" gorm:"primaryKey;type:char(36)"`
	Name                 string    `json:"name"`
	IsPublic             bool      `json:"is_public"`
	CurrentVideoPosition int       `json:"current_video_position"`
	CurrentVideoTime     float64   `json:"current_video_time"`
	IsPlaying            bool      `json:"is_playing"`
	LastActive           time.Time `json:"last_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// RoomParticipant is the membership edge. The composite primary key makes
// re-joining idempotent: upserting the same (user, room) pair is a no-op.
// Rows survive disconnects; live presence is tracked separately.
type RoomParticipant struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;size:64"`
	RoomID    uuid.UUID `json:"room_id" gorm:"primaryKey;type:char(36)"`
	CreatedAt time.Time `json:"created_at"`
}

// Video is a playlist entry. Position is unique within a room and assigned
// monotonically (max+1); positions are never reused.
type Video struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:char(36)"`
	RoomID    uuid.UUID `json:"room_id" gorm:"type:char(36);uniqueIndex:idx_room_position,priority:1"`
	VideoID   string    `json:"video_id"`
	Title     string    `json:"title"`
	Thumbnail string    `json:"thumbnail"`
	Duration  float64   `json:"duration"`
	Position  int       `json:"position" gorm:"uniqueIndex:idx_room_position,priority:2"`
	AddedByID string    `json:"added_by_id" gorm:"size:64"`
	AddedBy   User      `json:"-" gorm:"foreignKey:AddedByID"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is append-only: no edit or delete, removed only by room cleanup.
type Message struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:char(36)"`
	RoomID    uuid.UUID `json:"room_id" gorm:"type:char(36);index"`
	SenderID  string    `json:"sender_id" gorm:"size:64"`
	Sender    User      `json:"-" gorm:"foreignKey:SenderID"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
