// Package receipt issues immutable receipts for confirmed bookings.
// Issuing is idempotent per booking: the first call creates the
// receipt and every later call returns the same one.
package receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-engine/internal/metrics"
	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/seatmap"
)

// Labels used when the catalog no longer knows the booked showtime.
const (
	UnknownShow = "Unknown Show"
	UnknownTime = "Unknown Time"
)

// Store persists receipts.  CreateOnce must be atomic per booking id:
// concurrent calls for one booking store exactly one receipt and all
// of them get it back.
type Store interface {
	CreateOnce(ctx context.Context, r model.Receipt) (model.Receipt, bool, error)
	Get(ctx context.Context, id string) (model.Receipt, error)
	GetByBooking(ctx context.Context, bookingID string) (model.Receipt, error)
	ListByUser(ctx context.Context, userID string) ([]model.Receipt, error)
}

// Issuer creates and looks up receipts.
type Issuer struct {
	store Store
	shows seatmap.ShowtimeLookup
	log   logrus.FieldLogger
	now   func() time.Time
	newID func() string
}

type Option func(*Issuer)

func WithClock(now func() time.Time) Option { return func(i *Issuer) { i.now = now } }

func WithIDGenerator(gen func() string) Option { return func(i *Issuer) { i.newID = gen } }

func NewIssuer(store Store, shows seatmap.ShowtimeLookup, logger logrus.FieldLogger, opts ...Option) *Issuer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	i := &Issuer{
		store: store,
		shows: shows,
		log:   logger.WithField("component", "receipt"),
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return "rcpt_" + shortuuid.New() },
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Issue returns the receipt of a confirmed booking, creating it on
// first call.  created reports whether this call stored it.
func (i *Issuer) Issue(ctx context.Context, b model.Booking) (rc model.Receipt, created bool, err error) {
	if b.Status != model.BookingConfirmed {
		return model.Receipt{}, false, fmt.Errorf("%w: booking %s is %s, receipts need a confirmed booking", model.ErrInvalidState, b.ID, b.Status)
	}

	title, label := UnknownShow, UnknownTime
	if show, st, err := i.shows.Showtime(b.ShowtimeID); err == nil {
		title, label = show.Title, st.Label()
	}
	draft := model.Receipt{
		ID:            i.newID(),
		BookingID:     b.ID,
		UserID:        b.UserID,
		Amount:        b.TotalAmount,
		PaymentMethod: model.PaymentMethodRazorpay,
		TransactionID: b.PaymentRef,
		IssuedAt:      i.now(),
		ShowTitle:     title,
		Showtime:      label,
		Seats:         b.SeatIDs(),
	}
	rc, created, err = i.store.CreateOnce(ctx, draft)
	if err != nil {
		return model.Receipt{}, false, fmt.Errorf("store receipt for booking %s: %w", b.ID, err)
	}
	if created {
		metrics.ReceiptsIssued.Inc()
		i.log.WithFields(logrus.Fields{
			"receipt_id": rc.ID,
			"booking_id": rc.BookingID,
			"user_id":    rc.UserID,
			"amount":     rc.Amount,
		}).Info("receipt issued")
	}
	return rc, created, nil
}

// Lookup returns a receipt by id.
func (i *Issuer) Lookup(ctx context.Context, id string) (model.Receipt, error) {
	return i.store.Get(ctx, id)
}

// ForBooking returns the receipt of a booking.
func (i *Issuer) ForBooking(ctx context.Context, bookingID string) (model.Receipt, error) {
	return i.store.GetByBooking(ctx, bookingID)
}

// ListForUser returns the user's receipts, newest first.  Users with no
// receipts get an empty slice.
func (i *Issuer) ListForUser(ctx context.Context, userID string) ([]model.Receipt, error) {
	return i.store.ListByUser(ctx, userID)
}
