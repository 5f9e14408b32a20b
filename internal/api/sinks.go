package api

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errSinkClosed = errors.New("sink closed")

type sseFrame struct {
	event string
	data  []byte
}

// sseSink queues frames for the streaming handler goroutine, which owns
// the actual response writer. Send never blocks longer than the
// configured timeout; a stuck client shows up as a send failure and is
// evicted like any other dead transport.
type sseSink struct {
	frames  chan sseFrame
	done    chan struct{}
	timeout time.Duration
	once    sync.Once
}

func newSSESink(buffer int, timeout time.Duration) *sseSink {
	return &sseSink{
		frames:  make(chan sseFrame, buffer),
		done:    make(chan struct{}),
		timeout: timeout,
	}
}

func (s *sseSink) Send(event string, payload interface{}) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return errSinkClosed
	case s.frames <- sseFrame{event: event, data: data}:
		return nil
	case <-timer.C:
		return errors.New("send timed out")
	}
}

func (s *sseSink) Close() error {
	s.once.Do(func() {
		close(s.done)
	})
	return nil
}

// wsSink adapts a gorilla websocket connection. The mutex serializes
// writes; gorilla allows at most one concurrent writer. Every write
// carries a deadline so a wedged peer surfaces as a transport failure
// instead of holding the write mutex indefinitely.
type wsSink struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
	closed  bool
}

func newWSSink(conn *websocket.Conn, timeout time.Duration) *wsSink {
	return &wsSink{conn: conn, timeout: timeout}
}

type wsEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (s *wsSink) Send(event string, payload interface{}) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSinkClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(wsEnvelope{Event: event, Data: data})
}

func (s *wsSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func marshalPayload(payload interface{}) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(payload)
}
