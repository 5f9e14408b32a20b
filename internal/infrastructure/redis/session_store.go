package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kanban-system/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
)

const sessionKeyPrefix = "session:"

// SessionStore resolves bearer tokens against sessions written to Redis
// by the identity service. This service only reads them.
type SessionStore struct {
	client *redis.Client
	clock  clockwork.Clock
}

func NewSessionStore(client *redis.Client, clock clockwork.Clock) *SessionStore {
	return &SessionStore{
		client: client,
		clock:  clock,
	}
}

func (s *SessionStore) Verify(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	data, err := s.client.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("session lookup: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	if !session.ExpiresAt.After(s.clock.Now()) {
		return nil, domain.ErrTokenExpired
	}

	return &session, nil
}
