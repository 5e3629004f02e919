package model

import "time"

// BookingStatus enumerates the lifecycle states of a booking.
// pending -> confirmed and pending -> cancelled are the only
// transitions; both targets are terminal.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingConfirmed || s == BookingCancelled
}

// BookingSeat records a reserved seat and the price it was sold at.
// Prices are frozen at reservation time and never recomputed.
type BookingSeat struct {
	ID    string   `json:"id"`
	Tier  SeatTier `json:"type"`
	Price int64    `json:"price"`
}

// Booking groups the seats a user reserved for one showtime.
//
// Fields:
//  ID           - booking identifier.
//  UserID       - session user that created the booking.
//  ShowID       - show being booked.
//  ShowtimeID   - showtime whose occupancy the seats belong to.
//  Seats        - reserved seats in selection order, no duplicates.
//  TotalAmount  - sum of seat prices at reservation time.
//  Status       - pending, confirmed or cancelled.
//  CreatedAt    - creation timestamp (UTC).
//  ExpiresAt    - when a still-pending booking is auto-cancelled.
//  UpdatedAt    - last transition timestamp.
//  PaymentRef   - payment reference stored on confirm.
//  CancelReason - why a cancelled booking was cancelled.
type Booking struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	ShowID       string        `json:"show_id"`
	ShowtimeID   string        `json:"showtime_id"`
	Seats        []BookingSeat `json:"seats"`
	TotalAmount  int64         `json:"total_amount"`
	Status       BookingStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	PaymentRef   string        `json:"payment_ref,omitempty"`
	CancelReason string        `json:"cancel_reason,omitempty"`
}

// SeatIDs returns the seat labels of the booking in selection order.
func (b Booking) SeatIDs() []string {
	ids := make([]string, 0, len(b.Seats))
	for _, s := range b.Seats {
		ids = append(ids, s.ID)
	}
	return ids
}

// Clone returns a deep copy so stores never hand out shared slices.
func (b Booking) Clone() Booking {
	out := b
	out.Seats = append([]BookingSeat(nil), b.Seats...)
	return out
}

// Cancel reasons recorded on cancelled bookings.
const (
	CancelReasonUser          = "cancelled"
	CancelReasonExpired       = "expired"
	CancelReasonPaymentFailed = "payment_failed"
	CancelReasonAbandoned     = "abandoned"
)

// Transition describes a status change applied by a store.  Stores
// apply it only to pending bookings and release the booking's seats
// when To is BookingCancelled.
type Transition struct {
	To         BookingStatus
	PaymentRef string
	Reason     string
	At         time.Time
}
