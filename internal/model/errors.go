// Package model holds the booking engine's entities and the error
// kinds every layer uses to classify failures.  Handlers translate
// these sentinels into HTTP statuses; the engine never swallows them.
package model

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidSelection: empty, malformed, duplicate or unknown seats,
	// or a selection that does not belong to the requested showtime.
	// Client error, not retried.
	ErrInvalidSelection = errors.New("invalid seat selection")

	// ErrSeatConflict: at least one requested seat is already held.
	// The caller should re-fetch the seat map and pick again.
	ErrSeatConflict = errors.New("seat conflict")

	// ErrBookingNotFound: unknown booking id.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrInvalidState: transition requested from a terminal state.
	ErrInvalidState = errors.New("invalid booking state")

	// ErrPaymentFailed: the payment gateway declined or timed out.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrNotFound: unknown receipt id.
	ErrNotFound = errors.New("not found")

	// ErrShowNotFound: unknown show or showtime in the catalog.
	ErrShowNotFound = errors.New("show not found")
)

// SeatConflictError lists the seats that were already held when a
// reservation was attempted.  It matches ErrSeatConflict.
type SeatConflictError struct {
	ShowtimeID string
	Seats      []string
}

func (e *SeatConflictError) Error() string {
	return "seat conflict on showtime " + e.ShowtimeID + ": " + strings.Join(e.Seats, ",")
}

// Is lets errors.Is(err, ErrSeatConflict) match.
func (e *SeatConflictError) Is(target error) bool {
	return target == ErrSeatConflict
}
