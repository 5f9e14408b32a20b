package api

import (
	"context"
	"sync"

	"kanban-system/internal/domain"
)

// stubVerifier resolves tokens from a fixed table.
type stubVerifier struct {
	sessions map[string]*domain.Session
}

func newStubVerifier() *stubVerifier {
	return &stubVerifier{sessions: make(map[string]*domain.Session)}
}

func (v *stubVerifier) add(token string, session *domain.Session) {
	v.sessions[token] = session
}

func (v *stubVerifier) Verify(ctx context.Context, token string) (*domain.Session, error) {
	session, ok := v.sessions[token]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return session, nil
}

// allowAllAuthorizer grants every view check.
type allowAllAuthorizer struct{}

func (allowAllAuthorizer) CanView(ctx context.Context, userID, boardID int64) (bool, error) {
	return true, nil
}

// stubCardRepo keeps cards in a map.
type stubCardRepo struct {
	mu    sync.Mutex
	cards map[string]*domain.Card
}

func newStubCardRepo() *stubCardRepo {
	return &stubCardRepo{cards: make(map[string]*domain.Card)}
}

func (r *stubCardRepo) CreateCard(ctx context.Context, card *domain.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *card
	r.cards[card.ID] = &copied
	return nil
}

func (r *stubCardRepo) GetCard(ctx context.Context, cardID string) (*domain.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, ok := r.cards[cardID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *card
	return &copied, nil
}

func (r *stubCardRepo) MoveCard(ctx context.Context, cardID string, listID int64, position float64) (*domain.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, ok := r.cards[cardID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	card.ListID = listID
	card.Position = position
	copied := *card
	return &copied, nil
}

// captureBroadcaster records emitted events on a channel so tests can
// wait for the handler's emit goroutine.
type captureBroadcaster struct {
	boardEvents chan domain.Event
	userEvents  chan domain.Event
}

func newCaptureBroadcaster() *captureBroadcaster {
	return &captureBroadcaster{
		boardEvents: make(chan domain.Event, 8),
		userEvents:  make(chan domain.Event, 8),
	}
}

func (b *captureBroadcaster) EmitBoardEvent(ctx context.Context, event domain.Event) error {
	b.boardEvents <- event
	return nil
}

func (b *captureBroadcaster) EmitUserEvent(ctx context.Context, event domain.Event) error {
	b.userEvents <- event
	return nil
}
