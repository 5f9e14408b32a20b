package realtime

import (
	"sync"
	"time"

	"kanban-system/internal/domain"
	"kanban-system/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type connection struct {
	id          string
	userID      int64
	email       string
	boards      map[int64]struct{}
	tokenExpiry time.Time
	createdAt   time.Time
	closed      bool
	sink        domain.EventSink
}

// connState is a point-in-time copy of one connection handed out to the
// broadcaster and the heartbeat monitor, so neither reads live fields
// outside the registry lock. The sink itself is safe for concurrent use.
type connState struct {
	id          string
	userID      int64
	email       string
	tokenExpiry time.Time
	createdAt   time.Time
	closed      bool
	sink        domain.EventSink
}

func (c connState) expired(now time.Time) bool {
	return !c.tokenExpiry.After(now)
}

// Registry owns the authoritative set of live connections and enforces
// the one-connection-per-user invariant. All mutations go through its
// methods; absent ids are treated as already-satisfied no-ops.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
	clock clockwork.Clock
	log   logger.Logger
}

func NewRegistry(clock clockwork.Clock, log logger.Logger) *Registry {
	return &Registry{
		conns: make(map[string]*connection),
		clock: clock,
		log:   log,
	}
}

// Register inserts a new connection for the user and returns its id.
// Any existing connections owned by the same user are closed and
// removed first, so the newest connection always wins.
func (r *Registry) Register(userID int64, email string, sink domain.EventSink, tokenExpiry time.Time) string {
	r.mu.Lock()

	// Collect evicted sinks and close them after releasing the lock: a
	// transport whose Close blocks must never stall the registry.
	var evicted []*connection
	for id, conn := range r.conns {
		if conn.userID != userID {
			continue
		}
		conn.closed = true
		delete(r.conns, id)
		evicted = append(evicted, conn)
	}

	conn := &connection{
		id:          uuid.NewString(),
		userID:      userID,
		email:       email,
		boards:      make(map[int64]struct{}),
		tokenExpiry: tokenExpiry,
		createdAt:   r.clock.Now(),
		sink:        sink,
	}
	r.conns[conn.id] = conn

	r.mu.Unlock()

	for _, old := range evicted {
		r.closeSink(old)
		r.log.Info("evicted prior connection for user",
			"connection_id", old.id, "user_id", userID)
	}

	r.log.Info("connection registered",
		"connection_id", conn.id, "user_id", userID, "user_email", email)
	return conn.id
}

// Unregister closes and removes the connection. Calling it for an
// unknown or already-removed id is a no-op.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()

	conn, exists := r.conns[connectionID]
	if !exists {
		r.mu.Unlock()
		return
	}

	conn.closed = true
	delete(r.conns, connectionID)

	r.mu.Unlock()

	r.closeSink(conn)
	r.log.Info("connection unregistered",
		"connection_id", connectionID, "user_id", conn.userID)
}

// CloseAll evicts every connection, ending each client stream. Called
// at process shutdown before the HTTP servers drain.
func (r *Registry) CloseAll() {
	r.mu.Lock()

	remaining := make([]*connection, 0, len(r.conns))
	for id, conn := range r.conns {
		conn.closed = true
		delete(r.conns, id)
		remaining = append(remaining, conn)
	}

	r.mu.Unlock()

	for _, conn := range remaining {
		r.closeSink(conn)
	}
	if len(remaining) > 0 {
		r.log.Info("closed all connections", "count", len(remaining))
	}
}

func (r *Registry) closeSink(conn *connection) {
	if err := conn.sink.Close(); err != nil {
		r.log.Warn("failed to close connection sink",
			"connection_id", conn.id, "user_id", conn.userID, "error", err)
	}
}

// UpdateSubscriptions replaces the connection's board set wholesale.
// No-op if the connection is gone.
func (r *Registry) UpdateSubscriptions(connectionID string, boardIDs []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.conns[connectionID]
	if !exists {
		return
	}

	boards := make(map[int64]struct{}, len(boardIDs))
	for _, id := range boardIDs {
		boards[id] = struct{}{}
	}
	conn.boards = boards

	r.log.Debug("subscriptions updated",
		"connection_id", connectionID, "user_id", conn.userID, "boards", boardIDs)
}

// Owner reports which user holds the connection, if it is still live.
func (r *Registry) Owner(connectionID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.conns[connectionID]
	if !exists {
		return 0, false
	}
	return conn.userID, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns a read-only view of every live connection for the
// diagnostics surface.
func (r *Registry) Snapshot() []domain.ConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.clock.Now()
	infos := make([]domain.ConnectionInfo, 0, len(r.conns))
	for _, conn := range r.conns {
		boards := make([]int64, 0, len(conn.boards))
		for id := range conn.boards {
			boards = append(boards, id)
		}
		infos = append(infos, domain.ConnectionInfo{
			ID:          conn.id,
			UserID:      conn.userID,
			UserEmail:   conn.email,
			BoardIDs:    boards,
			TokenExpiry: conn.tokenExpiry,
			CreatedAt:   conn.createdAt,
			AgeSeconds:  int64(now.Sub(conn.createdAt).Seconds()),
		})
	}
	return infos
}

// subscribedTo copies every connection whose board set contains boardID.
func (r *Registry) subscribedTo(boardID int64) []connState {
	return r.snapshotWhere(func(c *connection) bool {
		_, ok := c.boards[boardID]
		return ok
	})
}

// ownedBy copies every connection held by userID. At most one entry in
// practice, but the broadcaster does not rely on that.
func (r *Registry) ownedBy(userID int64) []connState {
	return r.snapshotWhere(func(c *connection) bool {
		return c.userID == userID
	})
}

// allConns copies every connection for the heartbeat sweep.
func (r *Registry) allConns() []connState {
	return r.snapshotWhere(func(*connection) bool { return true })
}

func (r *Registry) snapshotWhere(pred func(*connection) bool) []connState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var states []connState
	for _, conn := range r.conns {
		if !pred(conn) {
			continue
		}
		states = append(states, connState{
			id:          conn.id,
			userID:      conn.userID,
			email:       conn.email,
			tokenExpiry: conn.tokenExpiry,
			createdAt:   conn.createdAt,
			closed:      conn.closed,
			sink:        conn.sink,
		})
	}
	return states
}
