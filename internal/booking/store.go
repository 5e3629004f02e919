package booking

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// Store persists bookings and the occupancy index.  Implementations
// must make Insert and Transition atomic on their own: Insert either
// records the booking and all its seats or fails with a
// *model.SeatConflictError naming the seats already held; Transition
// applies only to pending bookings (model.ErrInvalidState otherwise)
// and frees the seats of a booking it cancels.
type Store interface {
	Insert(ctx context.Context, b model.Booking) error
	Get(ctx context.Context, id string) (model.Booking, error)
	Transition(ctx context.Context, id string, t model.Transition) (model.Booking, error)
	HeldSeats(ctx context.Context, showtimeID string) (map[string]struct{}, error)
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
	// ListExpired returns pending bookings whose ExpiresAt is not after
	// now.  An empty showtimeID means all showtimes.
	ListExpired(ctx context.Context, now time.Time, showtimeID string) ([]model.Booking, error)
}
