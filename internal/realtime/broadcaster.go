package realtime

import (
	"context"
	"sync"

	"kanban-system/internal/domain"
	"kanban-system/pkg/logger"

	"github.com/jonboulle/clockwork"
)

// Broadcaster fans events out to eligible connections. Delivery to
// different recipients is independent: attempts run concurrently and
// are joined before the emit call returns, and one recipient's failure
// never aborts delivery to the others. Callers that must not block on
// delivery run the emit in their own goroutine.
type Broadcaster struct {
	registry *Registry
	auth     domain.BoardAuthorizer
	clock    clockwork.Clock
	log      logger.Logger
}

func NewBroadcaster(registry *Registry, auth domain.BoardAuthorizer,
	clock clockwork.Clock, log logger.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		auth:     auth,
		clock:    clock,
		log:      log,
	}
}

// EmitBoardEvent delivers the event to every connection subscribed to
// the event's board that still holds view permission. Closed or expired
// connections are skipped without eviction; the heartbeat sweep owns
// their cleanup. A failed send evicts that one connection.
func (b *Broadcaster) EmitBoardEvent(ctx context.Context, event domain.Event) error {
	if event.BoardID == 0 || event.UserID != 0 {
		return domain.ErrEventScope
	}

	now := b.clock.Now()
	candidates := b.registry.subscribedTo(event.BoardID)

	var wg sync.WaitGroup
	for _, conn := range candidates {
		if conn.closed || conn.expired(now) {
			continue
		}

		wg.Add(1)
		go func(conn connState) {
			defer wg.Done()

			allowed, err := b.auth.CanView(ctx, conn.userID, event.BoardID)
			if err != nil {
				// Fail closed: an unreachable permission store means no
				// delivery for this recipient, nothing more.
				b.log.Error("board permission check failed",
					"user_id", conn.userID, "board_id", event.BoardID, "error", err)
				return
			}
			if !allowed {
				return
			}

			b.deliver(conn, event)
		}(conn)
	}
	wg.Wait()

	return nil
}

// EmitUserEvent delivers the event to the user's own connection. No
// permission check: ownership is sufficient for personal notifications.
func (b *Broadcaster) EmitUserEvent(ctx context.Context, event domain.Event) error {
	if event.UserID == 0 || event.BoardID != 0 {
		return domain.ErrEventScope
	}

	now := b.clock.Now()
	candidates := b.registry.ownedBy(event.UserID)

	var wg sync.WaitGroup
	for _, conn := range candidates {
		if conn.closed || conn.expired(now) {
			continue
		}

		wg.Add(1)
		go func(conn connState) {
			defer wg.Done()
			b.deliver(conn, event)
		}(conn)
	}
	wg.Wait()

	return nil
}

func (b *Broadcaster) deliver(conn connState, event domain.Event) {
	if err := conn.sink.Send(string(event.Type), event.Payload); err != nil {
		b.log.Warn("event delivery failed, evicting connection",
			"connection_id", conn.id, "user_id", conn.userID,
			"event_type", event.Type, "error", err)
		b.registry.Unregister(conn.id)
	}
}
