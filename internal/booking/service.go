// Package booking implements the booking lifecycle: reserving seats
// as a pending booking, then confirming or cancelling it.  It is the
// only writer of the occupancy index.
//
// Create is serialised per showtime and Confirm/Cancel per booking.
// Nothing here waits on the payment gateway, so no lock is ever held
// across a payment.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-engine/internal/metrics"
	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/seatmap"
)

// Default settings used when Config leaves a field zero.
const (
	DefaultHoldTTL  = 5 * time.Minute
	DefaultMaxSeats = 10
)

// Config tunes the lifecycle.
type Config struct {
	// HoldTTL is how long a pending booking keeps its seats before it
	// is cancelled as expired.
	HoldTTL time.Duration
	// MaxSeats caps the seats of a single booking.
	MaxSeats int
}

// CreateRequest is the input of Create.  ExpectedPrices is optional:
// when set, every listed seat must still cost what the client saw,
// otherwise the request fails with model.ErrInvalidSelection.
type CreateRequest struct {
	UserID         string
	ShowID         string
	ShowtimeID     string
	Seats          []string
	ExpectedPrices map[string]int64
}

// Service is the booking lifecycle.  Construct it once per process and
// share it; it is safe for concurrent use.
type Service struct {
	store Store
	shows seatmap.ShowtimeLookup
	cfg   Config
	log   logrus.FieldLogger

	now   func() time.Time
	newID func() string

	showtimeLocks *keyedMutex
	bookingLocks  *keyedMutex
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the booking id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService wires the lifecycle to its store and catalog.
func NewService(store Store, shows seatmap.ShowtimeLookup, cfg Config, logger logrus.FieldLogger, opts ...Option) *Service {
	if store == nil || shows == nil {
		panic("nil dependency passed to booking.NewService")
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultHoldTTL
	}
	if cfg.MaxSeats <= 0 {
		cfg.MaxSeats = DefaultMaxSeats
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Service{
		store:         store,
		shows:         shows,
		cfg:           cfg,
		log:           logger.WithField("component", "booking"),
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
		showtimeLocks: newKeyedMutex(),
		bookingLocks:  newKeyedMutex(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create reserves the selected seats and records a pending booking
// whose total is the sum of the seat prices right now.  The request
// is rejected as a whole: either every seat is reserved or none is.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.Booking, error) {
	if req.UserID == "" {
		return model.Booking{}, fmt.Errorf("%w: missing user", model.ErrInvalidSelection)
	}
	show, st, err := s.shows.Showtime(req.ShowtimeID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("%w: unknown showtime %q", model.ErrInvalidSelection, req.ShowtimeID)
	}
	if req.ShowID != "" && req.ShowID != show.ID {
		return model.Booking{}, fmt.Errorf("%w: showtime %s does not belong to show %s", model.ErrInvalidSelection, st.ID, req.ShowID)
	}
	seats, err := seatmap.Resolve(st, req.Seats)
	if err != nil {
		return model.Booking{}, err
	}
	if len(seats) > s.cfg.MaxSeats {
		return model.Booking{}, fmt.Errorf("%w: %d seats requested, at most %d allowed", model.ErrInvalidSelection, len(seats), s.cfg.MaxSeats)
	}
	if err := checkExpectedPrices(seats, req.ExpectedPrices); err != nil {
		return model.Booking{}, err
	}

	var total int64
	for _, seat := range seats {
		total += seat.Price
	}

	unlock := s.showtimeLocks.Lock(st.ID)
	defer unlock()

	// free seats of abandoned checkouts before deciding on conflicts
	if _, err := s.expireStale(ctx, st.ID); err != nil {
		return model.Booking{}, err
	}

	now := s.now()
	b := model.Booking{
		ID:          s.newID(),
		UserID:      req.UserID,
		ShowID:      show.ID,
		ShowtimeID:  st.ID,
		Seats:       seats,
		TotalAmount: total,
		Status:      model.BookingPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.HoldTTL),
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, b); err != nil {
		if errors.Is(err, model.ErrSeatConflict) {
			metrics.SeatConflicts.Inc()
			s.log.WithFields(logrus.Fields{
				"showtime_id": st.ID,
				"user_id":     req.UserID,
				"error":       err,
			}).Warn("seat conflict on create")
			return model.Booking{}, err
		}
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	metrics.BookingsCreated.Inc()
	s.log.WithFields(logrus.Fields{
		"booking_id":  b.ID,
		"showtime_id": b.ShowtimeID,
		"user_id":     b.UserID,
		"seats":       b.SeatIDs(),
		"total":       b.TotalAmount,
	}).Info("booking created")
	return b, nil
}

func checkExpectedPrices(seats []model.BookingSeat, expected map[string]int64) error {
	if len(expected) == 0 {
		return nil
	}
	actual := make(map[string]int64, len(seats))
	for _, seat := range seats {
		actual[seat.ID] = seat.Price
	}
	for raw, want := range expected {
		ri, n, err := seatmap.ParseSeatID(raw)
		if err != nil {
			return err
		}
		id := seatmap.SeatID(ri, n)
		got, ok := actual[id]
		if !ok {
			return fmt.Errorf("%w: price given for unselected seat %s", model.ErrInvalidSelection, id)
		}
		if got != want {
			return fmt.Errorf("%w: seat %s costs %d, client expected %d", model.ErrInvalidSelection, id, got, want)
		}
	}
	return nil
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, id string) (model.Booking, error) {
	return s.store.Get(ctx, id)
}

// ListForUser returns the user's bookings, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return s.store.ListByUser(ctx, userID)
}

// HeldSeats exposes the occupancy index of a showtime.
func (s *Service) HeldSeats(ctx context.Context, showtimeID string) (map[string]struct{}, error) {
	return s.store.HeldSeats(ctx, showtimeID)
}

// Confirm moves a pending booking to confirmed and stores the payment
// reference.  Repeated confirms fail with model.ErrInvalidState.  A
// pending booking whose hold has expired is cancelled instead and
// the call fails with model.ErrInvalidState.
func (s *Service) Confirm(ctx context.Context, id, paymentRef string) (model.Booking, error) {
	unlock := s.bookingLocks.Lock(id)
	defer unlock()

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status.Terminal() {
		return model.Booking{}, fmt.Errorf("%w: booking %s is %s", model.ErrInvalidState, id, b.Status)
	}
	if paymentRef == "" {
		return model.Booking{}, fmt.Errorf("%w: payment reference required", model.ErrInvalidState)
	}
	now := s.now()
	if !now.Before(b.ExpiresAt) {
		if _, err := s.transition(ctx, b, model.Transition{To: model.BookingCancelled, Reason: model.CancelReasonExpired, At: now}); err != nil {
			return model.Booking{}, err
		}
		return model.Booking{}, fmt.Errorf("%w: booking %s expired at %s", model.ErrInvalidState, id, b.ExpiresAt.Format(time.RFC3339))
	}
	return s.transition(ctx, b, model.Transition{To: model.BookingConfirmed, PaymentRef: paymentRef, At: now})
}

// Cancel moves a pending booking to cancelled and releases its seats.
// Confirmed bookings cannot be cancelled.  An empty reason records a
// user cancellation.
func (s *Service) Cancel(ctx context.Context, id, reason string) (model.Booking, error) {
	if reason == "" {
		reason = model.CancelReasonUser
	}
	unlock := s.bookingLocks.Lock(id)
	defer unlock()

	b, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status.Terminal() {
		return model.Booking{}, fmt.Errorf("%w: booking %s is %s", model.ErrInvalidState, id, b.Status)
	}
	return s.transition(ctx, b, model.Transition{To: model.BookingCancelled, Reason: reason, At: s.now()})
}

func (s *Service) transition(ctx context.Context, b model.Booking, t model.Transition) (model.Booking, error) {
	out, err := s.store.Transition(ctx, b.ID, t)
	if err != nil {
		return model.Booking{}, err
	}
	entry := s.log.WithFields(logrus.Fields{
		"booking_id":  out.ID,
		"showtime_id": out.ShowtimeID,
		"user_id":     out.UserID,
	})
	switch t.To {
	case model.BookingConfirmed:
		metrics.BookingsConfirmed.Inc()
		entry.WithField("payment_ref", t.PaymentRef).Info("booking confirmed")
	case model.BookingCancelled:
		metrics.BookingsCancelled.WithLabelValues(t.Reason).Inc()
		entry.WithField("reason", t.Reason).Info("booking cancelled, seats released")
	}
	return out, nil
}

// ExpireStale cancels every pending booking whose hold has run out and
// returns how many it cancelled.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	return s.expireStale(ctx, "")
}

func (s *Service) expireStale(ctx context.Context, showtimeID string) (int, error) {
	now := s.now()
	expired, err := s.store.ListExpired(ctx, now, showtimeID)
	if err != nil {
		return 0, fmt.Errorf("list expired bookings: %w", err)
	}
	n := 0
	for _, b := range expired {
		ok, err := s.expireOne(ctx, b.ID, now)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// expireOne re-reads the booking under its lock; a concurrent confirm
// or cancel wins and is not an error.
func (s *Service) expireOne(ctx context.Context, id string, now time.Time) (bool, error) {
	unlock := s.bookingLocks.Lock(id)
	defer unlock()

	b, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrBookingNotFound) {
			return false, nil
		}
		return false, err
	}
	if b.Status != model.BookingPending || now.Before(b.ExpiresAt) {
		return false, nil
	}
	if _, err := s.transition(ctx, b, model.Transition{To: model.BookingCancelled, Reason: model.CancelReasonExpired, At: now}); err != nil {
		if errors.Is(err, model.ErrInvalidState) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
