package domain

import (
	"time"
)

// EventType enumerates the mutation kinds pushed to connected clients.
type EventType string

const (
	EventCardCreated     EventType = "card:created"
	EventCardUpdated     EventType = "card:updated"
	EventCardMoved       EventType = "card:moved"
	EventCardDeleted     EventType = "card:deleted"
	EventListCreated     EventType = "list:created"
	EventListUpdated     EventType = "list:updated"
	EventListDeleted     EventType = "list:deleted"
	EventLabelAdded      EventType = "label:added"
	EventLabelRemoved    EventType = "label:removed"
	EventCommentPosted   EventType = "comment:posted"
	EventBoardUpdated    EventType = "board:updated"
	EventNotificationNew EventType = "notification:new"

	// Synthetic events written by the service itself, never by handlers.
	EventConnected EventType = "connected"
	EventHeartbeat EventType = "heartbeat"
)

// Event is a single mutation notification. Exactly one of BoardID or
// UserID is set: board-scoped events fan out to subscribed viewers,
// user-scoped events go only to that user's connection.
type Event struct {
	Type    EventType   `json:"type"`
	BoardID int64       `json:"board_id,omitempty"`
	UserID  int64       `json:"user_id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// ConnectionInfo is a read-only view of one live connection, exposed
// through the diagnostics surface.
type ConnectionInfo struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	UserEmail   string    `json:"user_email"`
	BoardIDs    []int64   `json:"board_ids"`
	TokenExpiry time.Time `json:"token_expiry"`
	CreatedAt   time.Time `json:"created_at"`
	AgeSeconds  int64     `json:"age_seconds"`
}

// Session is the identity resolved from a bearer token.
type Session struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Card is the slice of the card model the mutation endpoints touch.
type Card struct {
	ID        string
	BoardID   int64
	ListID    int64
	Title     string
	Position  float64
	CreatedAt time.Time
	UpdatedAt time.Time
}
