package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSESinkQueuesFrames(t *testing.T) {
	sink := newSSESink(4, time.Second)

	require.NoError(t, sink.Send("card:updated", map[string]string{"card_id": "x"}))

	frame := <-sink.frames
	assert.Equal(t, "card:updated", frame.event)
	assert.JSONEq(t, `{"card_id":"x"}`, string(frame.data))
}

func TestSSESinkNilPayloadBecomesEmptyObject(t *testing.T) {
	sink := newSSESink(1, time.Second)

	require.NoError(t, sink.Send("heartbeat", nil))
	frame := <-sink.frames
	assert.Equal(t, "{}", string(frame.data))
}

func TestSSESinkSendAfterCloseFails(t *testing.T) {
	sink := newSSESink(4, time.Second)

	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Send("card:updated", nil), errSinkClosed)

	// Close is idempotent.
	require.NoError(t, sink.Close())
}

func TestSSESinkSendTimesOutWhenFull(t *testing.T) {
	sink := newSSESink(1, 20*time.Millisecond)

	require.NoError(t, sink.Send("card:updated", nil))
	assert.Error(t, sink.Send("card:updated", nil), "full buffer with no reader must fail, not block")
}

func TestWSSinkDeadlineSurfacesStuckPeer(t *testing.T) {
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	defer srv.Close()

	// The client never reads, so the peer's buffers fill and writes wedge.
	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	sink := newWSSink(<-conns, 100*time.Millisecond)
	defer sink.Close()

	payload := map[string]string{"blob": strings.Repeat("x", 1<<18)}
	var sendErr error
	for i := 0; i < 64 && sendErr == nil; i++ {
		sendErr = sink.Send("card:updated", payload)
	}
	require.Error(t, sendErr, "a wedged peer must surface as a send failure, not an indefinite block")
}
