package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// MySQLReceiptRepo stores receipts in the receipts table.  The unique
// key on booking_id makes CreateOnce safe across processes.
type MySQLReceiptRepo struct {
	db *sql.DB
}

func NewMySQLReceiptRepo(db *sql.DB) *MySQLReceiptRepo { return &MySQLReceiptRepo{db: db} }

const receiptColumns = `id, booking_id, user_id, amount, payment_method, transaction_id, issued_at, show_title, showtime, seats`

func scanReceipt(s rowScanner) (model.Receipt, error) {
	var rc model.Receipt
	var seats string
	err := s.Scan(&rc.ID, &rc.BookingID, &rc.UserID, &rc.Amount, &rc.PaymentMethod,
		&rc.TransactionID, &rc.IssuedAt, &rc.ShowTitle, &rc.Showtime, &seats)
	if err != nil {
		return model.Receipt{}, err
	}
	if err := json.Unmarshal([]byte(seats), &rc.Seats); err != nil {
		return model.Receipt{}, fmt.Errorf("decode seats of receipt %s: %w", rc.ID, err)
	}
	return rc, nil
}

// CreateOnce inserts rc.  When the booking already has a receipt the
// stored one is returned with created=false.
func (r *MySQLReceiptRepo) CreateOnce(ctx context.Context, rc model.Receipt) (model.Receipt, bool, error) {
	seats, err := json.Marshal(rc.Seats)
	if err != nil {
		return model.Receipt{}, false, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO receipts (`+receiptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rc.ID, rc.BookingID, rc.UserID, rc.Amount, rc.PaymentMethod, rc.TransactionID,
		rc.IssuedAt.UTC(), rc.ShowTitle, rc.Showtime, string(seats))
	if err != nil {
		if isDuplicateEntry(err) {
			existing, gerr := r.GetByBooking(ctx, rc.BookingID)
			if gerr != nil {
				// the duplicate was on the receipt id, not the booking
				return model.Receipt{}, false, fmt.Errorf("%w: receipt id %s", ErrConflict, rc.ID)
			}
			return existing, false, nil
		}
		return model.Receipt{}, false, err
	}
	return rc.Clone(), true, nil
}

func (r *MySQLReceiptRepo) getOne(ctx context.Context, where string, arg interface{}, missing string) (model.Receipt, error) {
	rc, err := scanReceipt(r.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE `+where+` = ?`, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Receipt{}, fmt.Errorf("%w: %s", model.ErrNotFound, missing)
		}
		return model.Receipt{}, err
	}
	return rc, nil
}

func (r *MySQLReceiptRepo) Get(ctx context.Context, id string) (model.Receipt, error) {
	return r.getOne(ctx, "id", id, "receipt "+id)
}

func (r *MySQLReceiptRepo) GetByBooking(ctx context.Context, bookingID string) (model.Receipt, error) {
	return r.getOne(ctx, "booking_id", bookingID, "receipt for booking "+bookingID)
}

// ListByUser returns the user's receipts, most recently issued first.
func (r *MySQLReceiptRepo) ListByUser(ctx context.Context, userID string) ([]model.Receipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE user_id = ? ORDER BY issued_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Receipt, 0)
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
