// Package metrics exposes Prometheus counters for the booking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "booking",
		Name:      "created_total",
		Help:      "Pending bookings created.",
	})

	SeatConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "booking",
		Name:      "seat_conflicts_total",
		Help:      "Create requests rejected because a seat was already held.",
	})

	BookingsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "booking",
		Name:      "confirmed_total",
		Help:      "Bookings moved from pending to confirmed.",
	})

	BookingsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking",
		Name:      "cancelled_total",
		Help:      "Bookings moved from pending to cancelled, by reason.",
	}, []string{"reason"})

	ReceiptsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "receipt",
		Name:      "issued_total",
		Help:      "Receipts created (idempotent re-issues not counted).",
	})

	PaymentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payment",
		Name:      "outcomes_total",
		Help:      "Payment gateway outcomes seen by checkout.",
	}, []string{"outcome"})
)
