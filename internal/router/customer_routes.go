package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-engine/internal/handler"
	"github.com/iliyamo/cinema-booking-engine/internal/middleware"
)

// RegisterCustomer registers the booking and receipt endpoints under /v1.
// All of them require a valid session token.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	g.POST("/bookings", h.CreateBooking)
	g.GET("/bookings", h.ListBookings)
	g.GET("/bookings/:id", h.GetBooking)
	g.POST("/bookings/:id/confirm", h.ConfirmBooking)
	g.POST("/bookings/:id/pay", h.PayBooking)
	g.DELETE("/bookings/:id", h.CancelBooking)
	g.GET("/bookings/:id/receipt", h.BookingReceipt)

	g.GET("/receipts", h.ListReceipts)
	g.GET("/receipts/:id", h.GetReceipt)
	g.GET("/receipts/:id/download", h.DownloadReceipt)
}
