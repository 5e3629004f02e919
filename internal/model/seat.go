package model

// SeatTier is the pricing category of a seat.  The tier is a pure
// function of the seat's row; see the seatmap package.
type SeatTier string

const (
	TierRegular SeatTier = "regular"
	TierPremium SeatTier = "premium"
	TierVIP     SeatTier = "vip"
)

// Seat is derived on every seat map request and never stored.  It is
// identified by (showtime, row, number); ID is the "{row}{number}"
// label, e.g. "A1".
//
// Fields:
//  ID       - seat label, unique within a showtime.
//  Row      - row letter A-J.
//  Number   - seat number within the row, 1-based.
//  Tier     - pricing tier derived from the row index.
//  Price    - price for this showtime and tier.
//  Occupied - true when the seat is held by a pending or confirmed booking.
type Seat struct {
	ID       string   `json:"id"`
	Row      string   `json:"row"`
	Number   int      `json:"number"`
	Tier     SeatTier `json:"type"`
	Price    int64    `json:"price"`
	Occupied bool     `json:"is_booked"`
}
