// Package queue carries receipt events over RabbitMQ: a publisher used
// by the engine after a receipt is issued and a consumer that appends
// each event to a log file.
package queue

import (
	"time"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// ReceiptQueueName is the durable queue receipt events are routed to.
const ReceiptQueueName = "receipt.issued"

// ReceiptIssuedEvent is published once per newly issued receipt.  It
// carries the receipt snapshot so consumers never need to call back
// into the engine.
type ReceiptIssuedEvent struct {
	ReceiptID     string   `json:"receipt_id"`
	BookingID     string   `json:"booking_id"`
	UserID        string   `json:"user_id"`
	Amount        int64    `json:"amount"`
	PaymentMethod string   `json:"payment_method"`
	TransactionID string   `json:"transaction_id"`
	ShowTitle     string   `json:"show_title"`
	Showtime      string   `json:"showtime"`
	Seats         []string `json:"seats"`
	IssuedAt      string   `json:"issued_at"`
}

// NewReceiptIssuedEvent builds the event for rc.
func NewReceiptIssuedEvent(rc model.Receipt) ReceiptIssuedEvent {
	return ReceiptIssuedEvent{
		ReceiptID:     rc.ID,
		BookingID:     rc.BookingID,
		UserID:        rc.UserID,
		Amount:        rc.Amount,
		PaymentMethod: rc.PaymentMethod,
		TransactionID: rc.TransactionID,
		ShowTitle:     rc.ShowTitle,
		Showtime:      rc.Showtime,
		Seats:         append([]string(nil), rc.Seats...),
		IssuedAt:      rc.IssuedAt.UTC().Format(time.RFC3339),
	}
}
