package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/negarena/internal/domain"
)

// GetArchivedSession returns the final snapshot of a finished session.
// GET /v1/archive/:session_id
func (h *Handler) GetArchivedSession(c echo.Context) error {
	snap, err := h.service.GetArchivedSnapshot(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// ListArchivedSessions GET /v1/archive?limit=
func (h *Handler) ListArchivedSessions(c echo.Context) error {
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	sessions, err := h.service.ListArchived(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, domain.ListSessionsResponse{Sessions: sessions})
}
