// Package payment adapts an external payment provider to the booking
// engine.  The engine only ever sees a Gateway: it starts a payment
// and receives exactly one Result on the returned channel.
package payment

import (
	"context"
	"math/rand"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// Result is the outcome of one payment attempt.
type Result struct {
	OK         bool
	PaymentRef string
	OrderID    string
	Reason     string
}

// Gateway starts payments.  Initiate must not block; the returned
// channel receives exactly one Result and is then closed.  When ctx is
// cancelled first the gateway may deliver a failed Result or none.
type Gateway interface {
	Initiate(ctx context.Context, amount int64, contact model.ContactInfo) <-chan Result
}

// SimulatedConfig tunes the simulated provider.
type SimulatedConfig struct {
	// Delay is how long the provider takes to answer.
	Delay time.Duration
	// FailureRate in [0,1] is the share of payments declined.
	FailureRate float64
}

// Simulated mimics a hosted checkout: it creates an order, waits, and
// answers with a "pay_..." reference.
type Simulated struct {
	cfg  SimulatedConfig
	log  logrus.FieldLogger
	roll func() float64
}

func NewSimulated(cfg SimulatedConfig, logger logrus.FieldLogger) *Simulated {
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Simulated{cfg: cfg, log: logger.WithField("component", "payment"), roll: rand.Float64}
}

func (g *Simulated) Initiate(ctx context.Context, amount int64, contact model.ContactInfo) <-chan Result {
	out := make(chan Result, 1)
	orderID := "order_" + shortuuid.New()
	entry := g.log.WithFields(logrus.Fields{"order_id": orderID, "amount": amount, "email": contact.Email})
	entry.Debug("payment initiated")

	go func() {
		defer close(out)
		if amount <= 0 {
			out <- Result{OrderID: orderID, Reason: "amount must be positive"}
			return
		}
		timer := time.NewTimer(g.cfg.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			out <- Result{OrderID: orderID, Reason: "payment cancelled"}
			return
		case <-timer.C:
		}
		if g.cfg.FailureRate > 0 && g.roll() < g.cfg.FailureRate {
			entry.Info("payment declined")
			out <- Result{OrderID: orderID, Reason: "payment declined by provider"}
			return
		}
		res := Result{OK: true, OrderID: orderID, PaymentRef: "pay_" + shortuuid.New()}
		entry.WithField("payment_ref", res.PaymentRef).Info("payment captured")
		out <- res
	}()
	return out
}

// Func adapts a function to Gateway, mostly for tests.
type Func func(ctx context.Context, amount int64, contact model.ContactInfo) <-chan Result

func (f Func) Initiate(ctx context.Context, amount int64, contact model.ContactInfo) <-chan Result {
	return f(ctx, amount, contact)
}
