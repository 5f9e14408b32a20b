package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kanban-system/internal/domain"
	"kanban-system/pkg/logger"

	"github.com/labstack/echo/v4"
)

const sseBufferSize = 64

// StreamHandler owns the long-lived client streams: the SSE endpoint
// here and the websocket endpoint in websocket_handler.go. Both
// validate the bearer token before touching the registry.
type StreamHandler struct {
	verifier    domain.TokenVerifier
	registry    domain.ConnectionRegistry
	sendTimeout time.Duration
	log         logger.Logger
}

func NewStreamHandler(verifier domain.TokenVerifier, registry domain.ConnectionRegistry,
	sendTimeout time.Duration, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		verifier:    verifier,
		registry:    registry,
		sendTimeout: sendTimeout,
		log:         log,
	}
}

// HandleSSE serves GET /api/v1/events/stream. The token travels as a
// query parameter because EventSource cannot set headers.
func (h *StreamHandler) HandleSSE(c echo.Context) error {
	session, err := h.authenticate(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
	}

	boards, err := parseBoardIDs(c.QueryParam("boards"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid boards parameter"})
	}

	sink := newSSESink(sseBufferSize, h.sendTimeout)
	connectionID := h.registry.Register(session.UserID, session.Email, sink, session.ExpiresAt)
	if len(boards) > 0 {
		h.registry.UpdateSubscriptions(connectionID, boards)
	}

	if err := sink.Send(string(domain.EventConnected), map[string]string{"connection_id": connectionID}); err != nil {
		h.registry.Unregister(connectionID)
		return err
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case frame := <-sink.frames:
			if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", frame.event, frame.data); err != nil {
				h.registry.Unregister(connectionID)
				return nil
			}
			resp.Flush()

		case <-sink.done:
			// Evicted by the registry; end the stream so the client
			// notices and reconnects.
			return nil

		case <-ctx.Done():
			// Client went away.
			h.registry.Unregister(connectionID)
			return nil
		}
	}
}

func (h *StreamHandler) authenticate(c echo.Context) (*domain.Session, error) {
	session, err := h.verifier.Verify(c.Request().Context(), bearerToken(c))
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidToken) && !errors.Is(err, domain.ErrTokenExpired) {
			// Fail closed on store errors, but keep the cause in the logs.
			h.log.Error("token verification failed", "error", err)
		}
		return nil, err
	}
	return session, nil
}

// bearerToken pulls the credential from the Authorization header, with
// a query-parameter fallback for the stream endpoints.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.QueryParam("token")
}

func parseBoardIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
