package domain

import (
	"time"
)

// CallKind discriminates one-to-one (session) calls from group (chat) calls
type CallKind string

const (
	CallKindOneToOne CallKind = "one_to_one"
	CallKindGroup    CallKind = "group"
)

// CallURLs is the pair of join addresses derived from one call identifier.
// The moderator URL goes to the initiator only, the user URL to invitees only.
type CallURLs struct {
	ModeratorVideoURL string `json:"moderator_video_url"`
	UserVideoURL      string `json:"user_video_url"`
}

// VideoRoom is the persisted mapping from a call room to its origin.
// Maps to CockroachDB video_rooms table
type VideoRoom struct {
	ID             int64      `json:"id" db:"id"`
	SessionID      *int64     `json:"session_id,omitempty" db:"session_id"`       // set for one-to-one calls
	GroupChatID    *int64     `json:"group_chat_id,omitempty" db:"group_chat_id"` // set for group calls
	RoomID         string     `json:"room_id" db:"room_id"`                       // equals the call identifier
	VideoLink      string     `json:"video_link" db:"video_link"`
	ProviderRoomID string     `json:"provider_room_id,omitempty" db:"provider_room_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}

// IsGroup reports whether the room was created by the group flow
func (r *VideoRoom) IsGroup() bool {
	return r.GroupChatID != nil
}

// Kind derives the call kind from the group chat discriminator
func (r *VideoRoom) Kind() CallKind {
	if r.IsGroup() {
		return CallKindGroup
	}
	return CallKindOneToOne
}

// IsClosed reports whether the room has been torn down
func (r *VideoRoom) IsClosed() bool {
	return r.ClosedAt != nil
}

// VideoCallSession describes a started call
type VideoCallSession struct {
	CallID    string     `json:"call_id"`
	Kind      CallKind   `json:"kind"`
	SubjectID int64      `json:"subject_id"` // session id or group chat id
	URLs      CallURLs   `json:"-"`
	Room      *VideoRoom `json:"room"`
}
