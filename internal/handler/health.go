package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is a liveness probe.  It returns a plain text "ok" with 200 as long
// as the process can serve HTTP.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is implemented by repository.FilmRepo.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyHandler is a readiness probe backed by a database ping.
type ReadyHandler struct {
	DB      Pinger
	Timeout time.Duration // defaults to 2s
}

// Ready returns 200 when the database answers within Timeout, 503 otherwise.
func (h *ReadyHandler) Ready(c echo.Context) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()
	if err := h.DB.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}
