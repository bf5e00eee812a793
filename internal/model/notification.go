package model

import (
	"encoding/json"
	"time"
)

// Notification kinds produced by the server.
const (
	KindDuelChallenge    = "duel_challenge"
	KindLeagueInvitation = "league_invitation"
	KindFriendRequest    = "friend_request"
	KindSessionReminder  = "session_reminder"
	KindAchievement      = "achievement"
	KindMatchResult      = "match_result"
	KindSystem           = "system"
)

// Notification is a server-generated, user-facing event record such as a
// duel challenge or a league invitation.
type Notification struct {
	// ID is unique within one player's notification list.
	ID int64 `json:"id" db:"id"`

	// Kind identifies the notification type (duel_challenge, achievement, ...).
	Kind string `json:"type" db:"kind"`

	// Title is the short headline shown in lists.
	Title string `json:"title" db:"title"`

	// Message is the human-readable notification text.
	Message string `json:"message" db:"message"`

	// Read indicates whether the player has seen this notification.
	// Locally it only ever moves from false to true.
	Read bool `json:"read_status" db:"read_status"`

	// CreatedAt is when the server generated the notification.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// LinkPath is the in-app path opened by the "View" action.
	LinkPath string `json:"link_path,omitempty" db:"link_path"`

	// Data is the kind-specific structured payload.
	Data json.RawMessage `json:"data,omitempty" db:"data"`
}

// Tag returns the desktop notification tag. Deliveries sharing a tag
// collapse into a single desktop notification.
func (n Notification) Tag() string {
	return "notification-" + formatID(n.ID)
}

// Stream event types.
const (
	EventNotification = "notification"
	EventConnected    = "connected"
)

// StreamEvent is one JSON message delivered over the live notification
// stream.
type StreamEvent struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
	PlayerID     int64         `json:"playerId,omitempty"`
}

// NotificationPage is the response of the bulk notification endpoint.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

// UnreadSummary is the response of the unread-count endpoint.
type UnreadSummary struct {
	UnreadCount int `json:"unread_count"`
}
