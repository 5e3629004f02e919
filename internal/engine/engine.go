// Package engine is the single entry point presentation layers use to
// drive the booking engine.  One Engine is built at process start and
// handed to every request handler; it owns no hidden global state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-engine/internal/booking"
	"github.com/iliyamo/cinema-booking-engine/internal/catalog"
	"github.com/iliyamo/cinema-booking-engine/internal/metrics"
	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/payment"
	"github.com/iliyamo/cinema-booking-engine/internal/queue"
	"github.com/iliyamo/cinema-booking-engine/internal/receipt"
	"github.com/iliyamo/cinema-booking-engine/internal/seatmap"
)

// DefaultPaymentTimeout bounds how long Checkout waits for the gateway.
const DefaultPaymentTimeout = 30 * time.Second

// publishTimeout bounds the best-effort receipt event publish.
const publishTimeout = 3 * time.Second

// settleTimeout bounds confirm and issue after a captured payment.
const settleTimeout = 10 * time.Second

// Deps are the collaborators of an Engine.  Catalog, Bookings and
// Receipts are required; a nil Gateway disables Checkout and a nil
// Publisher drops receipt events.
type Deps struct {
	Catalog        *catalog.Catalog
	Bookings       *booking.Service
	Receipts       *receipt.Issuer
	Gateway        payment.Gateway
	Publisher      queue.Publisher
	PaymentTimeout time.Duration
	Logger         logrus.FieldLogger
}

// Engine exposes the booking operations.
type Engine struct {
	catalog        *catalog.Catalog
	seats          *seatmap.Generator
	bookings       *booking.Service
	receipts       *receipt.Issuer
	gateway        payment.Gateway
	publisher      queue.Publisher
	paymentTimeout time.Duration
	log            logrus.FieldLogger
}

// New assembles an Engine.
func New(d Deps) (*Engine, error) {
	if d.Catalog == nil || d.Bookings == nil || d.Receipts == nil {
		return nil, errors.New("engine: catalog, bookings and receipts are required")
	}
	if d.Publisher == nil {
		d.Publisher = queue.NopPublisher{}
	}
	if d.PaymentTimeout <= 0 {
		d.PaymentTimeout = DefaultPaymentTimeout
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	return &Engine{
		catalog:        d.Catalog,
		seats:          seatmap.NewGenerator(d.Catalog, d.Bookings),
		bookings:       d.Bookings,
		receipts:       d.Receipts,
		gateway:        d.Gateway,
		publisher:      d.Publisher,
		paymentTimeout: d.PaymentTimeout,
		log:            d.Logger.WithField("component", "engine"),
	}, nil
}

// ShowtimeView is a showtime with its live free-seat count.
type ShowtimeView struct {
	model.Showtime
	AvailableSeats int `json:"available_seats"`
}

// ShowView is a show whose showtimes carry availability.
type ShowView struct {
	model.Show
	Showtimes []ShowtimeView `json:"showtimes"`
}

// ListShows returns the catalog in seed order.
func (e *Engine) ListShows(ctx context.Context) []model.Show {
	return e.catalog.ListShows()
}

// GetShow returns a show with per-showtime availability.
func (e *Engine) GetShow(ctx context.Context, showID string) (ShowView, error) {
	show, err := e.catalog.GetShow(showID)
	if err != nil {
		return ShowView{}, err
	}
	view := ShowView{Show: show, Showtimes: make([]ShowtimeView, 0, len(show.Showtimes))}
	for _, st := range show.Showtimes {
		free, err := e.seats.Available(ctx, st.ID)
		if err != nil {
			return ShowView{}, err
		}
		view.Showtimes = append(view.Showtimes, ShowtimeView{Showtime: st, AvailableSeats: free})
	}
	view.Show.Showtimes = nil
	return view, nil
}

// GetSeatMap returns the 120-seat map of a showtime with current
// occupancy.  Unknown showtimes yield an empty map.
func (e *Engine) GetSeatMap(ctx context.Context, showtimeID string) ([]model.Seat, error) {
	return e.seats.Generate(ctx, showtimeID)
}

// CreateBooking reserves seats as a pending booking.
func (e *Engine) CreateBooking(ctx context.Context, req booking.CreateRequest) (model.Booking, error) {
	return e.bookings.Create(ctx, req)
}

// ConfirmBooking confirms a pending booking and issues its receipt.
// When confirming succeeds but issuing fails, the confirmed booking is
// returned together with the error; IssueReceipt retries the issue.
func (e *Engine) ConfirmBooking(ctx context.Context, bookingID, paymentRef string) (model.Booking, model.Receipt, error) {
	b, err := e.bookings.Confirm(ctx, bookingID, paymentRef)
	if err != nil {
		return model.Booking{}, model.Receipt{}, err
	}
	rc, err := e.issue(ctx, b)
	if err != nil {
		return b, model.Receipt{}, err
	}
	return b, rc, nil
}

// IssueReceipt returns the receipt of a confirmed booking, issuing it
// if the earlier issue after confirm did not complete.
func (e *Engine) IssueReceipt(ctx context.Context, bookingID string) (model.Receipt, error) {
	b, err := e.bookings.Get(ctx, bookingID)
	if err != nil {
		return model.Receipt{}, err
	}
	return e.issue(ctx, b)
}

func (e *Engine) issue(ctx context.Context, b model.Booking) (model.Receipt, error) {
	rc, created, err := e.receipts.Issue(ctx, b)
	if err != nil {
		e.log.WithError(err).WithField("booking_id", b.ID).Error("issue receipt")
		return model.Receipt{}, err
	}
	if created {
		e.publish(ctx, rc)
	}
	return rc, nil
}

// publish sends the receipt event without failing the caller.
func (e *Engine) publish(ctx context.Context, rc model.Receipt) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.publisher.PublishReceiptIssued(pctx, queue.NewReceiptIssuedEvent(rc)); err != nil {
		e.log.WithError(err).WithField("receipt_id", rc.ID).Warn("receipt event not published")
	}
}

// CancelBooking cancels a pending booking and frees its seats.
func (e *Engine) CancelBooking(ctx context.Context, bookingID string) (model.Booking, error) {
	return e.bookings.Cancel(ctx, bookingID, model.CancelReasonUser)
}

// GetReceipt looks a receipt up by id.
func (e *Engine) GetReceipt(ctx context.Context, receiptID string) (model.Receipt, error) {
	return e.receipts.Lookup(ctx, receiptID)
}

// ListReceiptsForUser returns the user's receipts, newest first.
func (e *Engine) ListReceiptsForUser(ctx context.Context, userID string) ([]model.Receipt, error) {
	return e.receipts.ListForUser(ctx, userID)
}

// BookingForUser returns a booking owned by userID.  Bookings of other
// users are reported as not found.
func (e *Engine) BookingForUser(ctx context.Context, userID, bookingID string) (model.Booking, error) {
	b, err := e.bookings.Get(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.UserID != userID {
		return model.Booking{}, fmt.Errorf("%w: %s", model.ErrBookingNotFound, bookingID)
	}
	return b, nil
}

// ListBookingsForUser returns every booking of the user, newest first.
func (e *Engine) ListBookingsForUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return e.bookings.ListForUser(ctx, userID)
}

// Checkout pays for a pending booking.  It initiates the payment, waits
// for the gateway outside of any lock and then either confirms the
// booking and issues its receipt, or cancels it and fails with
// model.ErrPaymentFailed.  A gateway that does not answer within the
// payment timeout, or a caller that goes away, counts as a failure.
func (e *Engine) Checkout(ctx context.Context, bookingID string, contact model.ContactInfo) (model.Booking, model.Receipt, error) {
	if e.gateway == nil {
		return model.Booking{}, model.Receipt{}, fmt.Errorf("%w: no payment gateway configured", model.ErrPaymentFailed)
	}
	b, err := e.bookings.Get(ctx, bookingID)
	if err != nil {
		return model.Booking{}, model.Receipt{}, err
	}
	if b.Status.Terminal() {
		return model.Booking{}, model.Receipt{}, fmt.Errorf("%w: booking %s is %s", model.ErrInvalidState, b.ID, b.Status)
	}

	payCtx, cancel := context.WithTimeout(ctx, e.paymentTimeout)
	defer cancel()
	res, reason := awaitPayment(ctx, payCtx, e.gateway.Initiate(payCtx, b.TotalAmount, contact))

	entry := e.log.WithFields(logrus.Fields{"booking_id": b.ID, "order_id": res.OrderID})
	if res.OK {
		metrics.PaymentOutcomes.WithLabelValues("success").Inc()
		// the payment is captured; finish even if the caller went away
		settleCtx, settle := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
		defer settle()
		return e.ConfirmBooking(settleCtx, b.ID, res.PaymentRef)
	}
	metrics.PaymentOutcomes.WithLabelValues(reason).Inc()
	entry.WithField("reason", res.Reason).Warn("payment failed, releasing seats")

	// the caller's context may already be done; the seats must still be freed
	if _, cerr := e.bookings.Cancel(context.WithoutCancel(ctx), b.ID, reason); cerr != nil && !errors.Is(cerr, model.ErrInvalidState) {
		entry.WithError(cerr).Error("cancel after failed payment")
		return model.Booking{}, model.Receipt{}, fmt.Errorf("%w: %s (cancel failed: %v)", model.ErrPaymentFailed, res.Reason, cerr)
	}
	return model.Booking{}, model.Receipt{}, fmt.Errorf("%w: %s", model.ErrPaymentFailed, res.Reason)
}

// awaitPayment waits for the gateway result.  A result already
// delivered when the deadline fires is still honoured.
func awaitPayment(ctx, payCtx context.Context, results <-chan payment.Result) (payment.Result, string) {
	select {
	case r, ok := <-results:
		if !ok {
			return payment.Result{Reason: "gateway closed without a result"}, model.CancelReasonPaymentFailed
		}
		return r, model.CancelReasonPaymentFailed
	case <-payCtx.Done():
	}
	select {
	case r, ok := <-results:
		if ok {
			return r, model.CancelReasonPaymentFailed
		}
	default:
	}
	res := payment.Result{Reason: "payment timed out"}
	if ctx.Err() != nil {
		res.Reason = "checkout abandoned by client"
	}
	return res, model.CancelReasonAbandoned
}
