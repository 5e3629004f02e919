package booking

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSweepInterval is used when NewSweeper receives a non-positive
// interval.
const DefaultSweepInterval = 30 * time.Second

// Expirer is the part of Service the sweeper drives.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Sweeper cancels expired pending bookings on a fixed interval so
// their seats return to the map even when nobody books the showtime
// again.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	log      logrus.FieldLogger
}

func NewSweeper(expirer Expirer, interval time.Duration, logger logrus.FieldLogger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sweeper{
		expirer:  expirer,
		interval: interval,
		log:      logger.WithField("component", "booking_sweeper"),
	}
}

// Start blocks until ctx is cancelled.  It always returns nil so it
// can run inside an errgroup without tearing the group down.
func (w *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.WithField("interval", w.interval.String()).Info("booking sweeper started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("booking sweeper stopped")
			return nil
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs a single expiry pass.
func (w *Sweeper) Sweep(ctx context.Context) int {
	n, err := w.expirer.ExpireStale(ctx)
	if err != nil {
		w.log.WithError(err).Error("expire stale bookings")
	}
	if n > 0 {
		w.log.WithField("count", n).Info("expired pending bookings")
	}
	return n
}
