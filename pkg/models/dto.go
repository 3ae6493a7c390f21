package models

import "time"

// Wire shapes shared by the REST routes, the socket events and the client
// reconciliation layer.

type UserDTO struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type VideoDTO struct {
	VideoID   string  `json:"videoId"`
	Title     string  `json:"title"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration,omitempty"`
}

type PlaylistItemDTO struct {
	Position int      `json:"position"`
	Video    VideoDTO `json:"video"`
	AddedBy  UserRef  `json:"addedBy"`
}

type ChatMessageDTO struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	RoomID    string    `json:"roomId"`
	Sender    UserDTO   `json:"sender"`
}

// RoomStateDTO is the private playback snapshot sent to a joining connection.
type RoomStateDTO struct {
	VideoIndex int     `json:"videoIndex"`
	Time       float64 `json:"time"`
	Playing    bool    `json:"playing"`
}

type RoomDTO struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	IsPublic             bool      `json:"isPublic"`
	CreatedAt            time.Time `json:"createdAt"`
	LastActive           time.Time `json:"lastActive"`
	CurrentVideoPosition int       `json:"currentVideoPosition"`
	CurrentVideoTime     float64   `json:"currentVideoTime"`
	ParticipantCount     int       `json:"participantCount"`
}

func (u *User) DTO() UserDTO {
	return UserDTO{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
}

func (v *Video) PlaylistItem() PlaylistItemDTO {
	return PlaylistItemDTO{
		Position: v.Position,
		Video: VideoDTO{
			VideoID:   v.VideoID,
			Title:     v.Title,
			Thumbnail: v.Thumbnail,
			Duration:  v.Duration,
		},
		AddedBy: UserRef{ID: v.AddedBy.ID, Name: v.AddedBy.Name},
	}
}

func (m *Message) DTO() ChatMessageDTO {
	return ChatMessageDTO{
		ID:        m.ID.String(),
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		RoomID:    m.RoomID.String(),
		Sender:    m.Sender.DTO(),
	}
}
