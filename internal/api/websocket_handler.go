package api

import (
	"net/http"

	"kanban-system/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// HandleWebSocket serves GET /api/v1/events/ws, the websocket variant of
// the event stream. Outbound only: the read loop exists to detect the
// client going away.
func (h *StreamHandler) HandleWebSocket(c echo.Context) error {
	session, err := h.authenticate(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
	}

	boards, err := parseBoardIDs(c.QueryParam("boards"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid boards parameter"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("failed to upgrade connection", "error", err)
		return nil
	}

	sink := newWSSink(conn, h.sendTimeout)
	connectionID := h.registry.Register(session.UserID, session.Email, sink, session.ExpiresAt)
	if len(boards) > 0 {
		h.registry.UpdateSubscriptions(connectionID, boards)
	}

	if err := sink.Send(string(domain.EventConnected), map[string]string{"connection_id": connectionID}); err != nil {
		h.log.Error("failed to send connected event", "connection_id", connectionID, "error", err)
		h.registry.Unregister(connectionID)
		return nil
	}

	go h.readUntilClosed(conn, connectionID)
	return nil
}

func (h *StreamHandler) readUntilClosed(conn *websocket.Conn, connectionID string) {
	defer h.registry.Unregister(connectionID)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
