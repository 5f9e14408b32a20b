package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"kanban-system/internal/domain"
	"kanban-system/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CardHandler is the mutation surface that feeds the broadcaster. The
// full CRUD API lives in another service; these two endpoints exist so
// events flow end to end the same way that service emits them.
type CardHandler struct {
	verifier    domain.TokenVerifier
	authorizer  domain.BoardAuthorizer
	cards       domain.CardRepository
	broadcaster domain.EventBroadcaster
	log         logger.Logger
}

func NewCardHandler(verifier domain.TokenVerifier, authorizer domain.BoardAuthorizer,
	cards domain.CardRepository, broadcaster domain.EventBroadcaster, log logger.Logger) *CardHandler {
	return &CardHandler{
		verifier:    verifier,
		authorizer:  authorizer,
		cards:       cards,
		broadcaster: broadcaster,
		log:         log,
	}
}

type createCardRequest struct {
	ListID   int64   `json:"list_id"`
	Title    string  `json:"title"`
	Position float64 `json:"position"`
}

type moveCardRequest struct {
	ListID   int64   `json:"list_id"`
	Position float64 `json:"position"`
}

func (h *CardHandler) CreateCard(c echo.Context) error {
	session, err := h.verifier.Verify(c.Request().Context(), bearerToken(c))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
	}

	boardID, err := strconv.ParseInt(c.Param("boardID"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid board id"})
	}

	allowed, err := h.authorizer.CanView(c.Request().Context(), session.UserID, boardID)
	if err != nil {
		h.log.Error("board permission check failed", "user_id", session.UserID, "board_id", boardID, "error", err)
		return c.JSON(http.StatusForbidden, map[string]string{"error": "not a board member"})
	}
	if !allowed {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "not a board member"})
	}

	var req createCardRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title required"})
	}

	now := time.Now()
	card := &domain.Card{
		ID:        uuid.NewString(),
		BoardID:   boardID,
		ListID:    req.ListID,
		Title:     req.Title,
		Position:  req.Position,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.cards.CreateCard(c.Request().Context(), card); err != nil {
		h.log.Error("failed to create card", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create card"})
	}

	h.emit(domain.Event{
		Type:    domain.EventCardCreated,
		BoardID: boardID,
		Payload: map[string]interface{}{
			"card_id": card.ID,
			"list_id": card.ListID,
			"title":   card.Title,
		},
	})

	return c.JSON(http.StatusCreated, map[string]string{"card_id": card.ID})
}

func (h *CardHandler) MoveCard(c echo.Context) error {
	session, err := h.verifier.Verify(c.Request().Context(), bearerToken(c))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
	}

	var req moveCardRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	existing, err := h.cards.GetCard(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "card not found"})
		}
		h.log.Error("failed to load card", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to move card"})
	}

	allowed, err := h.authorizer.CanView(c.Request().Context(), session.UserID, existing.BoardID)
	if err != nil {
		h.log.Error("board permission check failed", "user_id", session.UserID, "board_id", existing.BoardID, "error", err)
		return c.JSON(http.StatusForbidden, map[string]string{"error": "not a board member"})
	}
	if !allowed {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "not a board member"})
	}

	card, err := h.cards.MoveCard(c.Request().Context(), existing.ID, req.ListID, req.Position)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "card not found"})
		}
		h.log.Error("failed to move card", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to move card"})
	}

	h.emit(domain.Event{
		Type:    domain.EventCardMoved,
		BoardID: card.BoardID,
		Payload: map[string]interface{}{
			"card_id":  card.ID,
			"list_id":  card.ListID,
			"position": card.Position,
		},
	})

	return c.JSON(http.StatusOK, map[string]string{"card_id": card.ID})
}

// emit pushes the event without blocking the mutation response on
// delivery completion.
func (h *CardHandler) emit(event domain.Event) {
	go func() {
		if err := h.broadcaster.EmitBoardEvent(context.Background(), event); err != nil {
			h.log.Error("failed to emit board event", "event_type", event.Type, "error", err)
		}
	}()
}
