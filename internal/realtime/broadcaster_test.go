package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"kanban-system/internal/domain"
	"kanban-system/pkg/logger"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroadcaster(t *testing.T) (*Broadcaster, *Registry, *stubAuthorizer, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	registry := NewRegistry(clock, logger.NewNop())
	auth := newStubAuthorizer()
	return NewBroadcaster(registry, auth, clock, logger.NewNop()), registry, auth, clock
}

func TestEmitBoardEventDeliversToAuthorizedSubscriber(t *testing.T) {
	b, registry, auth, clock := newTestBroadcaster(t)

	sink := &stubSink{}
	id := registry.Register(7, "seven@example.com", sink, clock.Now().Add(time.Hour))
	registry.UpdateSubscriptions(id, []int64{5})
	auth.allow(7, 5)

	err := b.EmitBoardEvent(context.Background(), domain.Event{
		Type:    domain.EventCardUpdated,
		BoardID: 5,
		Payload: map[string]string{"card_id": "x"},
	})
	require.NoError(t, err)

	sent := sink.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "card:updated", sent[0].event)
	assert.Equal(t, map[string]string{"card_id": "x"}, sent[0].payload)
}

func TestEmitBoardEventRespectsPerBoardAuthorization(t *testing.T) {
	b, registry, auth, clock := newTestBroadcaster(t)

	sink := &stubSink{}
	id := registry.Register(7, "seven@example.com", sink, clock.Now().Add(time.Hour))
	registry.UpdateSubscriptions(id, []int64{5, 6})
	auth.allow(7, 5)
	auth.deny(7, 6)

	require.NoError(t, b.EmitBoardEvent(context.Background(), domain.Event{Type: domain.EventCardMoved, BoardID: 6}))
	assert.Empty(t, sink.sent(), "unauthorized board must deliver nothing")

	require.NoError(t, b.EmitBoardEvent(context.Background(), domain.Event{Type: domain.EventCardMoved, BoardID: 5}))
	require.Len(t, sink.sent(), 1)
	assert.Equal(t, "card:moved", sink.sent()[0].event)

	// Lost access after the fact changes the delivery set.
	auth.deny(7, 5)
	require.NoError(t, b.EmitBoardEvent(context.Background(), domain.Event{Type: domain.EventCardMoved, BoardID: 5}))
	assert.Len(t, sink.sent(), 1)
}

func TestEmitBoardEventSkipsNonSubscribers(t *testing.T) {
	b, registry, auth, clock := newTestBroadcaster(t)

	sink := &stubSink{}
	id := registry.Register(7, "seven@example.com", sink, clock.Now().Add(time.Hour))
	registry.UpdateSubscriptions(id, []int64{5})
	auth.allow(7, 999)

	err := b.EmitBoardEvent(context.Background(), domain.Event{Type: domain.EventCardCreated, BoardID: 999})
	require.NoError(t, err, "empty delivery set is not an error")
	assert.Empty(t, sink.sent())
}

func TestEmitBoardEventSkipsExpiredWithoutEvicting(t *testing.T) {
	b, registry, auth, clock := newTestBroadcaster(t)

	sink := &stubSink{}
	id := registry.Register(9, "nine@example.com", sink, clock.Now().Add(time.Minute))
	registry.UpdateSubscriptions(id, []int64{5})
	auth.allow(9, 5)

	clock.Advance(2 * time.Minute)

	require.NoError(t, b.EmitBoardEvent(context.Background(), domain.Event{Type: domain.EventCardUpdated, BoardID: 5}))
	assert.Empty(t, sink.sent())
	// Stale entries are the heartbeat's job, not the emit path's.
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 0, sink.closeCount())
}

func TestEmitBoardEventEvictsOnSendFailure(t *testing.T) {
	b, registry, auth, clock := newTestBroadcaster(t)

	dead := &stubSink{}
	dead.failSends()
	live := &stubSink{}

	deadID := registry.Register(1, "one@example.com", dead, clock.Now().Add(time.Hour))
	liveID := registry.Register(2, "two@example.com", live, clock.Now().Add(time.Hour))
	registry.UpdateSubscriptions(deadID, []int64{5})
	registry.UpdateSubscriptions(liveID, []int64{5})
	auth.allow(1, 5)
	auth.allow(2, 5)

	require.NoError(t, b.EmitBoardEvent(context.Background(), domain.Event{Type: domain.EventCommentPosted, BoardID: 5}))

	// One recipient's failure never aborts delivery to others.
	require.Len(t, live.sent(), 1)
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 1, dead.closeCount())
	_, exists := registry.Owner(deadID)
	assert.False(t, exists)
}

func TestEmitBoardEventFailsClosedOnAuthorizerError(t *testing.T) {
	b, registry, auth, clock := newTestBroadcaster(t)

	sink := &stubSink{}
	id := registry.Register(7, "seven@example.com", sink, clock.Now().Add(time.Hour))
	registry.UpdateSubscriptions(id, []int64{5})
	auth.err = errors.New("store unreachable")

	require.NoError(t, b.EmitBoardEvent(context.Background(), domain.Event{Type: domain.EventCardUpdated, BoardID: 5}))
	assert.Empty(t, sink.sent())
	// Store failure skips delivery but never mutates the registry.
	assert.Equal(t, 1, registry.Len())
}

func TestEmitUserEventDeliversToOwnerWithoutAuthorization(t *testing.T) {
	b, registry, _, clock := newTestBroadcaster(t)

	sink := &stubSink{}
	registry.Register(9, "nine@example.com", sink, clock.Now().Add(time.Hour))

	err := b.EmitUserEvent(context.Background(), domain.Event{
		Type:    domain.EventNotificationNew,
		UserID:  9,
		Payload: map[string]string{"text": "hi"},
	})
	require.NoError(t, err)

	sent := sink.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "notification:new", sent[0].event)
}

func TestEmitUserEventSkipsExpiredConnection(t *testing.T) {
	b, registry, _, clock := newTestBroadcaster(t)

	sink := &stubSink{}
	registry.Register(9, "nine@example.com", sink, clock.Now().Add(-time.Second))

	require.NoError(t, b.EmitUserEvent(context.Background(), domain.Event{Type: domain.EventNotificationNew, UserID: 9}))
	assert.Empty(t, sink.sent())
}

func TestEmitUserEventEvictsOnSendFailure(t *testing.T) {
	b, registry, _, clock := newTestBroadcaster(t)

	sink := &stubSink{}
	sink.failSends()
	registry.Register(9, "nine@example.com", sink, clock.Now().Add(time.Hour))

	require.NoError(t, b.EmitUserEvent(context.Background(), domain.Event{Type: domain.EventNotificationNew, UserID: 9}))
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, 1, sink.closeCount())
}

func TestEmitRejectsBadScope(t *testing.T) {
	b, _, _, _ := newTestBroadcaster(t)
	ctx := context.Background()

	assert.ErrorIs(t, b.EmitBoardEvent(ctx, domain.Event{Type: domain.EventCardUpdated}), domain.ErrEventScope)
	assert.ErrorIs(t, b.EmitBoardEvent(ctx, domain.Event{Type: domain.EventCardUpdated, BoardID: 1, UserID: 2}), domain.ErrEventScope)
	assert.ErrorIs(t, b.EmitUserEvent(ctx, domain.Event{Type: domain.EventNotificationNew}), domain.ErrEventScope)
	assert.ErrorIs(t, b.EmitUserEvent(ctx, domain.Event{Type: domain.EventNotificationNew, BoardID: 1, UserID: 2}), domain.ErrEventScope)
}
