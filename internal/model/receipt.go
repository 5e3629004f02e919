package model

import "time"

// PaymentMethodRazorpay is recorded on every receipt issued through
// the simulated gateway.
const PaymentMethodRazorpay = "Razorpay"

// Receipt is the immutable proof of purchase for a confirmed booking.
// Show title, showtime label and seat labels are snapshots taken at
// issuance; later catalog changes never alter a stored receipt.
//
// Fields:
//  ID            - receipt identifier, distinct from the booking ID.
//  BookingID     - the confirmed booking this receipt belongs to.
//  UserID        - owner of the booking, used for per-user listing.
//  Amount        - equals the booking's TotalAmount.
//  PaymentMethod - payment provider name.
//  TransactionID - payment reference received on confirm.
//  IssuedAt      - issuance timestamp (UTC).
//  ShowTitle     - snapshot of the show title.
//  Showtime      - snapshot of "<date> <time>".
//  Seats         - snapshot of seat labels.
type Receipt struct {
	ID            string    `json:"id"`
	BookingID     string    `json:"booking_id"`
	UserID        string    `json:"user_id"`
	Amount        int64     `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	TransactionID string    `json:"transaction_id"`
	IssuedAt      time.Time `json:"date"`
	ShowTitle     string    `json:"show_title"`
	Showtime      string    `json:"showtime"`
	Seats         []string  `json:"seats"`
}

// Clone returns a deep copy of the receipt.
func (r Receipt) Clone() Receipt {
	out := r
	out.Seats = append([]string(nil), r.Seats...)
	return out
}
