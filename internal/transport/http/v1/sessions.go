package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/negarena/internal/domain"
)

// StartSession creates a session and starts it in the background.
// POST /v1/sessions
func (h *Handler) StartSession(c echo.Context) error {
	var cfg domain.SessionConfig
	if err := c.Bind(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.StartSession(c.Request().Context(), cfg)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetSession returns a snapshot with the events after ?since=N.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	since := 0
	if v := c.QueryParam("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "since must be a non-negative integer"})
		}
		since = n
	}

	snap, err := h.service.GetSnapshot(c.Request().Context(), c.Param("session_id"), since)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// PauseSession POST /v1/sessions/:session_id/pause
func (h *Handler) PauseSession(c echo.Context) error {
	resp, err := h.service.PauseSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ResumeSession POST /v1/sessions/:session_id/resume
func (h *Handler) ResumeSession(c echo.Context) error {
	resp, err := h.service.ResumeSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// CancelSession POST /v1/sessions/:session_id/cancel
func (h *Handler) CancelSession(c echo.Context) error {
	resp, err := h.service.CancelSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ListSessions lists live sessions.
// GET /v1/sessions?kind=&status=&limit=
func (h *Handler) ListSessions(c echo.Context) error {
	filter := domain.SessionFilter{
		Kind:   domain.SessionKind(c.QueryParam("kind")),
		Status: domain.SessionStatus(c.QueryParam("status")),
		Limit:  50,
	}
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			filter.Limit = val
		}
	}

	sessions := h.service.ListSessions(c.Request().Context(), filter)
	return c.JSON(http.StatusOK, domain.ListSessionsResponse{Sessions: sessions})
}

// DeleteSession drops a finished session from memory.
// DELETE /v1/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	id := c.Param("session_id")
	if err := h.service.DeleteSession(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "id": id})
}
