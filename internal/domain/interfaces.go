package domain

import (
	"context"
	"time"
)

// EventSink is the transport capability owned by one connection. The
// HTTP layer provides an implementation per stream (SSE or websocket);
// the core only ever sends named events through it and closes it.
type EventSink interface {
	Send(event string, payload interface{}) error
	Close() error
}

// ConnectionRegistry is the single source of truth for live connections.
// None of these operations fail: absent ids are already-satisfied no-ops.
type ConnectionRegistry interface {
	// Register evicts any existing connections for userID, then inserts
	// a new one and returns its id.
	Register(userID int64, email string, sink EventSink, tokenExpiry time.Time) string

	// Unregister marks the connection closed, removes it and closes its
	// sink. Idempotent.
	Unregister(connectionID string)

	// UpdateSubscriptions replaces the connection's board set wholesale.
	UpdateSubscriptions(connectionID string, boardIDs []int64)

	// Owner reports which user holds the connection, if it is live.
	Owner(connectionID string) (int64, bool)

	Snapshot() []ConnectionInfo
	Len() int
}

// EventBroadcaster fans an event out to all currently-eligible
// connections. Per-recipient failures evict that connection and are
// never surfaced to the caller.
type EventBroadcaster interface {
	EmitBoardEvent(ctx context.Context, event Event) error
	EmitUserEvent(ctx context.Context, event Event) error
}

// BoardAuthorizer answers whether a user holds view permission on a
// board right now. Checked per emission, never cached.
type BoardAuthorizer interface {
	CanView(ctx context.Context, userID, boardID int64) (bool, error)
}

// TokenVerifier resolves an opaque bearer token into a session.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Session, error)
}

// CardRepository persists card mutations for the endpoints that feed
// the broadcaster. The wider CRUD surface lives elsewhere.
type CardRepository interface {
	CreateCard(ctx context.Context, card *Card) error
	GetCard(ctx context.Context, cardID string) (*Card, error)
	MoveCard(ctx context.Context, cardID string, listID int64, position float64) (*Card, error)
}
