// Package seatmap derives the seat layout of a showtime and prices
// each seat by tier.  Seats are never stored: every call recomputes
// the grid and overlays the current occupancy of the showtime.
package seatmap

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// SeatsPerRow is the number of seats in every row.
const SeatsPerRow = 12

// Rows lists the row letters front to back.
var Rows = [...]string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}

// LayoutSize is the total number of seats in a showtime's layout.
const LayoutSize = len(Rows) * SeatsPerRow

// TierForRow maps a 0-based row index to its pricing tier: rows 0-3
// regular, 4-6 premium, 7-9 vip.
func TierForRow(rowIndex int) model.SeatTier {
	switch {
	case rowIndex >= 7:
		return model.TierVIP
	case rowIndex >= 4:
		return model.TierPremium
	default:
		return model.TierRegular
	}
}

// tier multipliers in percent of the showtime's regular price
var tierPercent = map[model.SeatTier]int64{
	model.TierRegular: 100,
	model.TierPremium: 128,
	model.TierVIP:     160,
}

// Price returns the seat price for a tier given the showtime's
// regular price, rounded half up to a whole unit.
func Price(regular int64, tier model.SeatTier) int64 {
	pct, ok := tierPercent[tier]
	if !ok {
		pct = 100
	}
	return (regular*pct + 50) / 100
}

// ParseSeatID splits a "{row}{number}" label into its row index and
// seat number.  It rejects anything outside the A-J x 1-12 grid.
func ParseSeatID(id string) (rowIndex, number int, err error) {
	id = strings.TrimSpace(id)
	if len(id) < 2 {
		return 0, 0, fmt.Errorf("%w: malformed seat id %q", model.ErrInvalidSelection, id)
	}
	row := strings.ToUpper(id[:1])
	rowIndex = -1
	for i, r := range Rows {
		if r == row {
			rowIndex = i
			break
		}
	}
	if rowIndex < 0 {
		return 0, 0, fmt.Errorf("%w: unknown row in seat id %q", model.ErrInvalidSelection, id)
	}
	// reject signs and leading zeros so every seat has exactly one spelling
	digits := id[1:]
	if digits[0] < '1' || digits[0] > '9' {
		return 0, 0, fmt.Errorf("%w: malformed seat id %q", model.ErrInvalidSelection, id)
	}
	number, err = strconv.Atoi(digits)
	if err != nil || number < 1 || number > SeatsPerRow {
		return 0, 0, fmt.Errorf("%w: unknown seat number in seat id %q", model.ErrInvalidSelection, id)
	}
	return rowIndex, number, nil
}

// SeatID formats the canonical label for a grid position.
func SeatID(rowIndex, number int) string {
	return Rows[rowIndex] + strconv.Itoa(number)
}

// ShowtimeLookup resolves showtimes; *catalog.Catalog satisfies it.
type ShowtimeLookup interface {
	Showtime(id string) (model.Show, model.Showtime, error)
}

// Occupancy reports which seats of a showtime are currently held by
// pending or confirmed bookings.
type Occupancy interface {
	HeldSeats(ctx context.Context, showtimeID string) (map[string]struct{}, error)
}

// Generator builds seat maps.  It holds no state of its own and is
// safe for concurrent use.
type Generator struct {
	shows     ShowtimeLookup
	occupancy Occupancy
}

// NewGenerator returns a Generator reading showtimes from shows and
// occupancy from occ.
func NewGenerator(shows ShowtimeLookup, occ Occupancy) *Generator {
	if shows == nil || occ == nil {
		panic("nil dependency passed to seatmap.NewGenerator")
	}
	return &Generator{shows: shows, occupancy: occ}
}

// Layout returns the unoccupied 120-seat grid for a showtime, rows
// A-J and seats 1-12 in order.
func Layout(st model.Showtime) []model.Seat {
	seats := make([]model.Seat, 0, LayoutSize)
	for ri, row := range Rows {
		tier := TierForRow(ri)
		price := Price(st.Price, tier)
		for n := 1; n <= SeatsPerRow; n++ {
			seats = append(seats, model.Seat{
				ID:     row + strconv.Itoa(n),
				Row:    row,
				Number: n,
				Tier:   tier,
				Price:  price,
			})
		}
	}
	return seats
}

// Generate returns the seat map of a showtime with occupancy taken
// from the store at call time.  An unknown showtime yields an empty
// map and no error; callers check existence first.
func (g *Generator) Generate(ctx context.Context, showtimeID string) ([]model.Seat, error) {
	_, st, err := g.shows.Showtime(showtimeID)
	if err != nil {
		return []model.Seat{}, nil
	}
	held, err := g.occupancy.HeldSeats(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("seatmap: load occupancy for %s: %w", showtimeID, err)
	}
	seats := Layout(st)
	for i := range seats {
		_, seats[i].Occupied = held[seats[i].ID]
	}
	return seats, nil
}

// Available counts free seats of a showtime.
func (g *Generator) Available(ctx context.Context, showtimeID string) (int, error) {
	held, err := g.occupancy.HeldSeats(ctx, showtimeID)
	if err != nil {
		return 0, fmt.Errorf("seatmap: load occupancy for %s: %w", showtimeID, err)
	}
	return LayoutSize - len(held), nil
}

// Resolve validates a seat selection against a showtime's layout and
// prices it.  It fails with ErrInvalidSelection when the selection is
// empty, contains duplicates or names seats outside the grid.  The
// returned seats keep the selection order and use canonical labels.
func Resolve(st model.Showtime, selection []string) ([]model.BookingSeat, error) {
	if len(selection) == 0 {
		return nil, fmt.Errorf("%w: no seats selected", model.ErrInvalidSelection)
	}
	seen := make(map[string]struct{}, len(selection))
	out := make([]model.BookingSeat, 0, len(selection))
	for _, raw := range selection {
		ri, n, err := ParseSeatID(raw)
		if err != nil {
			return nil, err
		}
		id := SeatID(ri, n)
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: seat %s selected twice", model.ErrInvalidSelection, id)
		}
		seen[id] = struct{}{}
		tier := TierForRow(ri)
		out = append(out, model.BookingSeat{ID: id, Tier: tier, Price: Price(st.Price, tier)})
	}
	return out, nil
}
