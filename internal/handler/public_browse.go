package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-engine/internal/engine"
	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// PublicHandler serves the catalog and seat maps without a session.
type PublicHandler struct {
	Engine *engine.Engine
}

func NewPublicHandler(e *engine.Engine) *PublicHandler {
	if e == nil {
		panic("nil engine passed to NewPublicHandler")
	}
	return &PublicHandler{Engine: e}
}

// ListShows handles GET /v1/shows.
func (h *PublicHandler) ListShows(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"shows": h.Engine.ListShows(c.Request().Context())})
}

// GetShow handles GET /v1/shows/:id.  Each showtime carries its live
// available_seats count.
func (h *PublicHandler) GetShow(c echo.Context) error {
	show, err := h.Engine.GetShow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, show)
}

// GetSeatMap handles GET /v1/showtimes/:id/seats.  The map is built at
// request time and never cached.
func (h *PublicHandler) GetSeatMap(c echo.Context) error {
	id := c.Param("id")
	seats, err := h.Engine.GetSeatMap(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if len(seats) == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
	}
	free := 0
	for _, s := range seats {
		if !s.Occupied {
			free++
		}
	}
	return c.JSON(http.StatusOK, struct {
		ShowtimeID string       `json:"showtime_id"`
		Available  int          `json:"available_seats"`
		Seats      []model.Seat `json:"seats"`
	}{id, free, seats})
}
