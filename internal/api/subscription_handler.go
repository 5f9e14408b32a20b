package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type updateSubscriptionsRequest struct {
	BoardIDs []int64 `json:"board_ids"`
}

// HandleUpdateSubscriptions serves PUT /api/v1/events/subscriptions/:id,
// replacing the connection's board set wholesale. Only the connection's
// owner may change it.
func (h *StreamHandler) HandleUpdateSubscriptions(c echo.Context) error {
	session, err := h.authenticate(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
	}

	connectionID := c.Param("id")
	ownerID, exists := h.registry.Owner(connectionID)
	if !exists {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "connection not found"})
	}
	if ownerID != session.UserID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "not your connection"})
	}

	var req updateSubscriptionsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	h.registry.UpdateSubscriptions(connectionID, req.BoardIDs)
	return c.NoContent(http.StatusNoContent)
}
