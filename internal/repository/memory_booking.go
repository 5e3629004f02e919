package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// MemoryBookingRepo keeps bookings and the occupancy index in process
// memory.  A single RWMutex guards both maps, so a booking and the
// seats it holds are always updated together.
type MemoryBookingRepo struct {
	mu        sync.RWMutex
	bookings  map[string]model.Booking
	occupancy map[string]map[string]string // showtime -> seat -> booking id
}

// NewMemoryBookingRepo returns an empty in-memory booking store.
func NewMemoryBookingRepo() *MemoryBookingRepo {
	return &MemoryBookingRepo{
		bookings:  make(map[string]model.Booking),
		occupancy: make(map[string]map[string]string),
	}
}

// Insert records b and marks its seats held.  When any seat is taken
// nothing is written and a *model.SeatConflictError is returned.
func (r *MemoryBookingRepo) Insert(ctx context.Context, b model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[b.ID]; ok {
		return fmt.Errorf("%w: duplicate booking id %s", ErrConflict, b.ID)
	}
	held := r.occupancy[b.ShowtimeID]
	var taken []string
	for _, s := range b.Seats {
		if _, ok := held[s.ID]; ok {
			taken = append(taken, s.ID)
		}
	}
	if len(taken) > 0 {
		return &model.SeatConflictError{ShowtimeID: b.ShowtimeID, Seats: taken}
	}
	if held == nil {
		held = make(map[string]string, len(b.Seats))
		r.occupancy[b.ShowtimeID] = held
	}
	for _, s := range b.Seats {
		held[s.ID] = b.ID
	}
	r.bookings[b.ID] = b.Clone()
	return nil
}

func (r *MemoryBookingRepo) Get(ctx context.Context, id string) (model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("%w: %s", model.ErrBookingNotFound, id)
	}
	return b.Clone(), nil
}

// Transition applies t to a pending booking.  Cancelling removes the
// booking's seats from the occupancy index in the same critical
// section.
func (r *MemoryBookingRepo) Transition(ctx context.Context, id string, t model.Transition) (model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("%w: %s", model.ErrBookingNotFound, id)
	}
	if b.Status.Terminal() {
		return model.Booking{}, fmt.Errorf("%w: booking %s is %s", model.ErrInvalidState, id, b.Status)
	}
	switch t.To {
	case model.BookingConfirmed:
		b.PaymentRef = t.PaymentRef
	case model.BookingCancelled:
		b.CancelReason = t.Reason
		held := r.occupancy[b.ShowtimeID]
		for _, s := range b.Seats {
			if held[s.ID] == b.ID {
				delete(held, s.ID)
			}
		}
		if len(held) == 0 {
			delete(r.occupancy, b.ShowtimeID)
		}
	default:
		return model.Booking{}, fmt.Errorf("%w: cannot move booking to %s", model.ErrInvalidState, t.To)
	}
	b.Status = t.To
	b.UpdatedAt = t.At
	r.bookings[id] = b
	return b.Clone(), nil
}

func (r *MemoryBookingRepo) HeldSeats(ctx context.Context, showtimeID string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	held := r.occupancy[showtimeID]
	out := make(map[string]struct{}, len(held))
	for seat := range held {
		out[seat] = struct{}{}
	}
	return out, nil
}

// ListByUser returns the user's bookings, newest first.
func (r *MemoryBookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	r.mu.RLock()
	out := make([]model.Booking, 0)
	for _, b := range r.bookings {
		if b.UserID == userID {
			out = append(out, b.Clone())
		}
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryBookingRepo) ListExpired(ctx context.Context, now time.Time, showtimeID string) ([]model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Booking
	for _, b := range r.bookings {
		if b.Status != model.BookingPending || b.ExpiresAt.After(now) {
			continue
		}
		if showtimeID != "" && b.ShowtimeID != showtimeID {
			continue
		}
		out = append(out, b.Clone())
	}
	return out, nil
}

func sortNewestFirst(bs []model.Booking) {
	slices.SortStableFunc(bs, func(a, b model.Booking) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID > b.ID {
			return -1
		}
		if a.ID < b.ID {
			return 1
		}
		return 0
	})
}
