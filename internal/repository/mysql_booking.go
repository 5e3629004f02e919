package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// Server error numbers for a unique key violation and for a
// transaction chosen as deadlock victim.
const (
	mysqlDuplicateEntry = 1062
	mysqlDeadlock       = 1213
)

// insertAttempts bounds how often Insert restarts after a deadlock.
// Concurrent FOR UPDATE reads of missing occupancy rows share gap
// locks, so two inserts racing for one seat can deadlock.
const insertAttempts = 3

// MySQLBookingRepo stores bookings in the bookings, booking_seats and
// seat_occupancy tables.  Every write runs in its own transaction.
type MySQLBookingRepo struct {
	db *sql.DB
}

// NewMySQLBookingRepo returns a booking store bound to db.  The schema
// must already exist; see database.EnsureSchema.
func NewMySQLBookingRepo(db *sql.DB) *MySQLBookingRepo { return &MySQLBookingRepo{db: db} }

func isDuplicateEntry(err error) bool { return hasErrorNumber(err, mysqlDuplicateEntry) }

func isDeadlock(err error) bool { return hasErrorNumber(err, mysqlDeadlock) }

func hasErrorNumber(err error, n uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == n
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Insert locks the requested occupancy rows, fails with a
// *model.SeatConflictError when any exists and otherwise writes the
// booking, its seats and its occupancy rows in one transaction.
func (r *MySQLBookingRepo) Insert(ctx context.Context, b model.Booking) error {
	var err error
	for attempt := 0; attempt < insertAttempts; attempt++ {
		if err = r.insert(ctx, b); !isDeadlock(err) {
			return err
		}
	}
	return err
}

func (r *MySQLBookingRepo) insert(ctx context.Context, b model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seatIDs := b.SeatIDs()
	taken, err := heldAmong(ctx, tx, b.ShowtimeID, seatIDs, true)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return &model.SeatConflictError{ShowtimeID: b.ShowtimeID, Seats: taken}
	}

	const q = `INSERT INTO bookings (id, user_id, show_id, showtime_id, total_amount, status, created_at, expires_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, b.ID, b.UserID, b.ShowID, b.ShowtimeID, b.TotalAmount,
		string(b.Status), b.CreatedAt.UTC(), b.ExpiresAt.UTC(), b.UpdatedAt.UTC()); err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("%w: duplicate booking id %s", ErrConflict, b.ID)
		}
		return err
	}

	seatQuery := `INSERT INTO booking_seats (booking_id, position, seat_id, tier, price) VALUES `
	occQuery := `INSERT INTO seat_occupancy (showtime_id, seat_id, booking_id) VALUES `
	seatArgs := make([]interface{}, 0, len(b.Seats)*5)
	occArgs := make([]interface{}, 0, len(b.Seats)*3)
	for i, s := range b.Seats {
		if i > 0 {
			seatQuery += ","
			occQuery += ","
		}
		seatQuery += "(?, ?, ?, ?, ?)"
		occQuery += "(?, ?, ?)"
		seatArgs = append(seatArgs, b.ID, i, s.ID, string(s.Tier), s.Price)
		occArgs = append(occArgs, b.ShowtimeID, s.ID, b.ID)
	}
	if _, err := tx.ExecContext(ctx, seatQuery, seatArgs...); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, occQuery, occArgs...); err != nil {
		if isDuplicateEntry(err) {
			// lost a race with another process between the lock and the insert
			tx.Rollback()
			taken, qerr := heldAmong(ctx, r.db, b.ShowtimeID, seatIDs, false)
			if qerr != nil || len(taken) == 0 {
				taken = seatIDs
			}
			return &model.SeatConflictError{ShowtimeID: b.ShowtimeID, Seats: taken}
		}
		return err
	}
	return tx.Commit()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// heldAmong returns the seats of seatIDs that have an occupancy row,
// in the order given.
func heldAmong(ctx context.Context, q querier, showtimeID string, seatIDs []string, forUpdate bool) ([]string, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	query := `SELECT seat_id FROM seat_occupancy WHERE showtime_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)`
	if forUpdate {
		query += " FOR UPDATE"
	}
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, showtimeID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	held := make(map[string]struct{})
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		held[sid] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var out []string
	for _, id := range seatIDs {
		if _, ok := held[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

const bookingColumns = `id, user_id, show_id, showtime_id, total_amount, status, created_at, expires_at, updated_at, payment_ref, cancel_reason`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var b model.Booking
	var status string
	var paymentRef, reason sql.NullString
	err := s.Scan(&b.ID, &b.UserID, &b.ShowID, &b.ShowtimeID, &b.TotalAmount, &status,
		&b.CreatedAt, &b.ExpiresAt, &b.UpdatedAt, &paymentRef, &reason)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.PaymentRef = paymentRef.String
	b.CancelReason = reason.String
	return b, nil
}

func (r *MySQLBookingRepo) Get(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, fmt.Errorf("%w: %s", model.ErrBookingNotFound, id)
		}
		return model.Booking{}, err
	}
	out, err := r.withSeats(ctx, []model.Booking{b})
	if err != nil {
		return model.Booking{}, err
	}
	return out[0], nil
}

// withSeats loads booking_seats for every booking in bs.
func (r *MySQLBookingRepo) withSeats(ctx context.Context, bs []model.Booking) ([]model.Booking, error) {
	if len(bs) == 0 {
		return bs, nil
	}
	idx := make(map[string]int, len(bs))
	args := make([]interface{}, 0, len(bs))
	for i, b := range bs {
		idx[b.ID] = i
		args = append(args, b.ID)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT booking_id, seat_id, tier, price FROM booking_seats WHERE booking_id IN (`+placeholders(len(bs))+`) ORDER BY booking_id, position`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var bookingID, tier string
		var s model.BookingSeat
		if err := rows.Scan(&bookingID, &s.ID, &tier, &s.Price); err != nil {
			return nil, err
		}
		s.Tier = model.SeatTier(tier)
		i := idx[bookingID]
		bs[i].Seats = append(bs[i].Seats, s)
	}
	return bs, rows.Err()
}

// Transition locks the booking row, checks that it is pending and
// applies t.  Cancelling deletes the booking's occupancy rows in the
// same transaction.
func (r *MySQLBookingRepo) Transition(ctx context.Context, id string, t model.Transition) (model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ? FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, fmt.Errorf("%w: %s", model.ErrBookingNotFound, id)
		}
		return model.Booking{}, err
	}
	if model.BookingStatus(status).Terminal() {
		return model.Booking{}, fmt.Errorf("%w: booking %s is %s", model.ErrInvalidState, id, status)
	}

	switch t.To {
	case model.BookingConfirmed:
		_, err = tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, payment_ref = ?, updated_at = ? WHERE id = ?`,
			string(t.To), t.PaymentRef, t.At.UTC(), id)
	case model.BookingCancelled:
		_, err = tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, cancel_reason = ?, updated_at = ? WHERE id = ?`,
			string(t.To), t.Reason, t.At.UTC(), id)
		if err == nil {
			_, err = tx.ExecContext(ctx, `DELETE FROM seat_occupancy WHERE booking_id = ?`, id)
		}
	default:
		return model.Booking{}, fmt.Errorf("%w: cannot move booking to %s", model.ErrInvalidState, t.To)
	}
	if err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, err
	}
	return r.Get(ctx, id)
}

func (r *MySQLBookingRepo) HeldSeats(ctx context.Context, showtimeID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT seat_id FROM seat_occupancy WHERE showtime_id = ?`, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		out[sid] = struct{}{}
	}
	return out, rows.Err()
}

func (r *MySQLBookingRepo) queryBookings(ctx context.Context, query string, args ...interface{}) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return r.withSeats(ctx, out)
}

// ListByUser returns the user's bookings, newest first.
func (r *MySQLBookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return r.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

func (r *MySQLBookingRepo) ListExpired(ctx context.Context, now time.Time, showtimeID string) ([]model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? AND expires_at <= ?`
	args := []interface{}{string(model.BookingPending), now.UTC()}
	if showtimeID != "" {
		query += ` AND showtime_id = ?`
		args = append(args, showtimeID)
	}
	return r.queryBookings(ctx, query, args...)
}
