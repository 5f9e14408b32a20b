package realtime

import (
	"context"
	"errors"
	"sync"
)

// stubSink records sends and closes, and can be told to fail.
type stubSink struct {
	mu       sync.Mutex
	events   []sentEvent
	closes   int
	sendErr  error
	closeErr error
}

type sentEvent struct {
	event   string
	payload interface{}
}

func (s *stubSink) Send(event string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.events = append(s.events, sentEvent{event: event, payload: payload})
	return nil
}

func (s *stubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.closeErr
}

func (s *stubSink) failSends() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = errors.New("transport gone")
}

func (s *stubSink) sent() []sentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *stubSink) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// blockingCloseSink parks inside Close until released, standing in for
// a transport whose teardown stalls on a wedged peer.
type blockingCloseSink struct {
	closing chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingCloseSink() *blockingCloseSink {
	return &blockingCloseSink{
		closing: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingCloseSink) Send(event string, payload interface{}) error { return nil }

func (s *blockingCloseSink) Close() error {
	s.once.Do(func() { close(s.closing) })
	<-s.release
	return nil
}

// stubAuthorizer answers from a fixed permission table.
type stubAuthorizer struct {
	mu      sync.Mutex
	allowed map[[2]int64]bool
	err     error
}

func newStubAuthorizer() *stubAuthorizer {
	return &stubAuthorizer{allowed: make(map[[2]int64]bool)}
}

func (a *stubAuthorizer) allow(userID, boardID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allowed[[2]int64{userID, boardID}] = true
}

func (a *stubAuthorizer) deny(userID, boardID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allowed[[2]int64{userID, boardID}] = false
}

func (a *stubAuthorizer) CanView(ctx context.Context, userID, boardID int64) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return false, a.err
	}
	return a.allowed[[2]int64{userID, boardID}], nil
}
