package handler

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-engine/internal/booking"
	"github.com/iliyamo/cinema-booking-engine/internal/engine"
	"github.com/iliyamo/cinema-booking-engine/internal/middleware"
	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// CustomerHandler serves the booking and receipt endpoints.  All methods
// assume JWTAuth already ran; bookings and receipts of other users are
// reported as not found.
type CustomerHandler struct {
	Engine   *engine.Engine
	Users    UserDirectory
	validate *validator.Validate
}

func NewCustomerHandler(e *engine.Engine, users UserDirectory) *CustomerHandler {
	if e == nil || users == nil {
		panic("nil dependency passed to NewCustomerHandler")
	}
	return &CustomerHandler{Engine: e, Users: users, validate: validator.New()}
}

type createBookingReq struct {
	ShowID         string           `json:"show_id"`
	ShowtimeID     string           `json:"showtime_id" validate:"required"`
	Seats          []string         `json:"seats" validate:"required,min=1,dive,required"`
	ExpectedPrices map[string]int64 `json:"expected_prices" validate:"omitempty,dive,gt=0"`
}

type confirmReq struct {
	PaymentRef string `json:"payment_ref" validate:"required"`
}

type bookingResp struct {
	Booking model.Booking  `json:"booking"`
	Receipt *model.Receipt `json:"receipt,omitempty"`
}

// CreateBooking handles POST /v1/bookings.  On success the seats are
// held as a pending booking until expires_at.
func (h *CustomerHandler) CreateBooking(c echo.Context) error {
	var body createBookingReq
	if ok, err := bindAndValidate(c, h.validate, &body); !ok {
		return err
	}
	b, err := h.Engine.CreateBooking(c.Request().Context(), booking.CreateRequest{
		UserID:         middleware.UserID(c),
		ShowID:         body.ShowID,
		ShowtimeID:     body.ShowtimeID,
		Seats:          body.Seats,
		ExpectedPrices: body.ExpectedPrices,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, bookingResp{Booking: b})
}

// ListBookings handles GET /v1/bookings, newest first.
func (h *CustomerHandler) ListBookings(c echo.Context) error {
	bs, err := h.Engine.ListBookingsForUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bs})
}

// GetBooking handles GET /v1/bookings/:id.
func (h *CustomerHandler) GetBooking(c echo.Context) error {
	b, err := h.Engine.BookingForUser(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, bookingResp{Booking: b})
}

// ConfirmBooking handles POST /v1/bookings/:id/confirm with the payment
// reference delivered by the gateway callback.  A second confirm fails
// with 409.
func (h *CustomerHandler) ConfirmBooking(c echo.Context) error {
	var body confirmReq
	if ok, err := bindAndValidate(c, h.validate, &body); !ok {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.Engine.BookingForUser(ctx, middleware.UserID(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	b, rc, err := h.Engine.ConfirmBooking(ctx, c.Param("id"), body.PaymentRef)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, bookingResp{Booking: b, Receipt: &rc})
}

// CancelBooking handles DELETE /v1/bookings/:id.
func (h *CustomerHandler) CancelBooking(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.Engine.BookingForUser(ctx, middleware.UserID(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	b, err := h.Engine.CancelBooking(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, bookingResp{Booking: b})
}

// PayBooking handles POST /v1/bookings/:id/pay.  It blocks until the
// gateway answers or the payment timeout passes.  A failed payment
// releases the seats and answers 402.
func (h *CustomerHandler) PayBooking(c echo.Context) error {
	ctx := c.Request().Context()
	uid := middleware.UserID(c)
	if _, err := h.Engine.BookingForUser(ctx, uid, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
	}
	b, rc, err := h.Engine.Checkout(ctx, c.Param("id"), u.Contact())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, bookingResp{Booking: b, Receipt: &rc})
}

// ListReceipts handles GET /v1/receipts, newest first.
func (h *CustomerHandler) ListReceipts(c echo.Context) error {
	rs, err := h.Engine.ListReceiptsForUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"receipts": rs})
}

func (h *CustomerHandler) ownReceipt(c echo.Context) (model.Receipt, error) {
	rc, err := h.Engine.GetReceipt(c.Request().Context(), c.Param("id"))
	if err != nil {
		return model.Receipt{}, err
	}
	if rc.UserID != middleware.UserID(c) {
		return model.Receipt{}, fmt.Errorf("%w: receipt %s", model.ErrNotFound, rc.ID)
	}
	return rc, nil
}

// GetReceipt handles GET /v1/receipts/:id.
func (h *CustomerHandler) GetReceipt(c echo.Context) error {
	rc, err := h.ownReceipt(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rc)
}

// DownloadReceipt handles GET /v1/receipts/:id/download and serves the
// receipt as ticket-<id>.json.
func (h *CustomerHandler) DownloadReceipt(c echo.Context) error {
	rc, err := h.ownReceipt(c)
	if err != nil {
		return writeError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "ticket-"+rc.ID+".json"))
	return c.JSONPretty(http.StatusOK, rc, "  ")
}

// BookingReceipt handles GET /v1/bookings/:id/receipt.  It also finishes
// an issue that did not complete right after confirm.
func (h *CustomerHandler) BookingReceipt(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.Engine.BookingForUser(ctx, middleware.UserID(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	rc, err := h.Engine.IssueReceipt(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rc)
}
