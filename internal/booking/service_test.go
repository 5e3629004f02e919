package booking_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-engine/internal/booking"
	"github.com/iliyamo/cinema-booking-engine/internal/catalog"
	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	svc   *booking.Service
	store *repository.MemoryBookingRepo
	clock *fakeClock
}

func newFixture(t *testing.T, cfg booking.Config) fixture {
	t.Helper()
	store := repository.NewMemoryBookingRepo()
	clock := newFakeClock()
	svc := booking.NewService(store, catalog.MustSeed(), cfg, quietLogger(), booking.WithClock(clock.Now))
	return fixture{svc: svc, store: store, clock: clock}
}

func req(user, showtime string, seats ...string) booking.CreateRequest {
	return booking.CreateRequest{UserID: user, ShowID: "1", ShowtimeID: showtime, Seats: seats}
}

func TestCreateReservesSeatsAndPricesByTier(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	b, err := f.svc.Create(ctx, req("u1", "1-1", "A1", "H1"))
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, int64(650), b.TotalAmount)
	assert.Equal(t, []string{"A1", "H1"}, b.SeatIDs())
	assert.Equal(t, model.TierVIP, b.Seats[1].Tier)
	assert.Equal(t, f.clock.Now().Add(booking.DefaultHoldTTL), b.ExpiresAt)

	held, err := f.svc.HeldSeats(ctx, "1-1")
	require.NoError(t, err)
	assert.Len(t, held, 2)
	assert.Contains(t, held, "A1")
	assert.Contains(t, held, "H1")
}

func TestCreateNormalisesSeatLabels(t *testing.T) {
	f := newFixture(t, booking.Config{})
	b, err := f.svc.Create(context.Background(), req("u1", "1-1", " a1 ", "j12"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "J12"}, b.SeatIDs())
}

func TestCreateRejectsInvalidSelections(t *testing.T) {
	f := newFixture(t, booking.Config{MaxSeats: 3})
	ctx := context.Background()

	tests := []struct {
		name string
		req  booking.CreateRequest
	}{
		{"empty selection", req("u1", "1-1")},
		{"duplicate seat", req("u1", "1-1", "A1", "a1")},
		{"row outside layout", req("u1", "1-1", "K1")},
		{"number outside layout", req("u1", "1-1", "A13")},
		{"seat zero", req("u1", "1-1", "A0")},
		{"garbage", req("u1", "1-1", "??")},
		{"unknown showtime", req("u1", "9-9", "A1")},
		{"showtime of another show", booking.CreateRequest{UserID: "u1", ShowID: "2", ShowtimeID: "1-1", Seats: []string{"A1"}}},
		{"missing user", req("", "1-1", "A1")},
		{"too many seats", req("u1", "1-1", "A1", "A2", "A3", "A4")},
		{"stale expected price", booking.CreateRequest{UserID: "u1", ShowtimeID: "1-1", Seats: []string{"A1"}, ExpectedPrices: map[string]int64{"A1": 200}}},
		{"expected price for unselected seat", booking.CreateRequest{UserID: "u1", ShowtimeID: "1-1", Seats: []string{"A1"}, ExpectedPrices: map[string]int64{"A2": 250}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.req)
			require.ErrorIs(t, err, model.ErrInvalidSelection)
		})
	}

	held, err := f.svc.HeldSeats(ctx, "1-1")
	require.NoError(t, err)
	assert.Empty(t, held, "rejected requests must not reserve anything")
}

func TestCreateAcceptsMatchingExpectedPrices(t *testing.T) {
	f := newFixture(t, booking.Config{})
	b, err := f.svc.Create(context.Background(), booking.CreateRequest{
		UserID:         "u1",
		ShowtimeID:     "1-1",
		Seats:          []string{"A1", "E1"},
		ExpectedPrices: map[string]int64{"a1": 250, "E1": 320},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(570), b.TotalAmount)
}

func TestCreateConflictRejectsWholeRequest(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, req("u1", "1-1", "A1", "A2"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, req("u2", "1-1", "A2", "A3"))
	require.ErrorIs(t, err, model.ErrSeatConflict)
	var conflict *model.SeatConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"A2"}, conflict.Seats)

	held, err := f.svc.HeldSeats(ctx, "1-1")
	require.NoError(t, err)
	assert.NotContains(t, held, "A3", "no partial reservation")

	// same seat on another showtime is independent
	_, err = f.svc.Create(ctx, req("u2", "1-2", "A2"))
	require.NoError(t, err)
}

func TestConcurrentCreatesNeverDoubleBook(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	results := make([]error, workers)
	bookings := make([]model.Booking, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// every worker overlaps its neighbour on one seat
			seats := []string{fmt.Sprintf("B%d", i%12+1), fmt.Sprintf("B%d", (i+1)%12+1)}
			bookings[i], results[i] = f.svc.Create(ctx, req(fmt.Sprintf("u%d", i), "2-1", seats...))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]string)
	successes := 0
	for i, err := range results {
		if err != nil {
			require.ErrorIs(t, err, model.ErrSeatConflict)
			continue
		}
		successes++
		for _, s := range bookings[i].SeatIDs() {
			prev, dup := seen[s]
			require.False(t, dup, "seat %s held by %s and %s", s, prev, bookings[i].ID)
			seen[s] = bookings[i].ID
		}
	}
	assert.Positive(t, successes)

	held, err := f.svc.HeldSeats(ctx, "2-1")
	require.NoError(t, err)
	assert.Len(t, held, len(seen))
}

func TestConcurrentDisjointCreatesAllSucceed(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row := string(rune('A' + i))
			_, errs[i] = f.svc.Create(ctx, req("u", "3-1", row+"1", row+"2"))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	held, err := f.svc.HeldSeats(ctx, "3-1")
	require.NoError(t, err)
	assert.Len(t, held, 20)
}

func TestConfirmStoresPaymentRefOnce(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	b, err := f.svc.Create(ctx, req("u1", "1-1", "A1"))
	require.NoError(t, err)

	confirmed, err := f.svc.Confirm(ctx, b.ID, "pay_abc123")
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, confirmed.Status)
	assert.Equal(t, "pay_abc123", confirmed.PaymentRef)

	_, err = f.svc.Confirm(ctx, b.ID, "pay_other")
	require.ErrorIs(t, err, model.ErrInvalidState)

	_, err = f.svc.Cancel(ctx, b.ID, "")
	require.ErrorIs(t, err, model.ErrInvalidState, "confirmed bookings cannot be cancelled")

	held, err := f.svc.HeldSeats(ctx, "1-1")
	require.NoError(t, err)
	assert.Contains(t, held, "A1", "confirmed seats stay held")
}

func TestConfirmRequiresReference(t *testing.T) {
	f := newFixture(t, booking.Config{})
	b, err := f.svc.Create(context.Background(), req("u1", "1-1", "A1"))
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), b.ID, "")
	require.ErrorIs(t, err, model.ErrInvalidState)

	got, err := f.svc.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, got.Status)
}

func TestUnknownBooking(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, "missing", "pay_x")
	require.ErrorIs(t, err, model.ErrBookingNotFound)
	_, err = f.svc.Confirm(ctx, "missing", "")
	require.ErrorIs(t, err, model.ErrBookingNotFound, "lookup comes before the reference check")
	_, err = f.svc.Cancel(ctx, "missing", "")
	require.ErrorIs(t, err, model.ErrBookingNotFound)
	_, err = f.svc.Get(ctx, "missing")
	require.ErrorIs(t, err, model.ErrBookingNotFound)
}

func TestCancelReleasesSeats(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	b, err := f.svc.Create(ctx, req("u1", "1-1", "C5", "C6"))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	assert.Equal(t, model.CancelReasonUser, cancelled.CancelReason)

	held, err := f.svc.HeldSeats(ctx, "1-1")
	require.NoError(t, err)
	assert.Empty(t, held)

	_, err = f.svc.Confirm(ctx, b.ID, "pay_late")
	require.ErrorIs(t, err, model.ErrInvalidState, "no confirm after cancel")

	_, err = f.svc.Create(ctx, req("u2", "1-1", "C5"))
	require.NoError(t, err, "released seats are bookable again")

	kept, err := f.svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, kept.Status, "cancelled bookings are retained")
}

func TestConfirmAndCancelRace(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t, booking.Config{})
		ctx := context.Background()
		b, err := f.svc.Create(ctx, req("u1", "1-1", "A1"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		var confirmErr, cancelErr error
		wg.Add(2)
		go func() { defer wg.Done(); _, confirmErr = f.svc.Confirm(ctx, b.ID, "pay_1") }()
		go func() { defer wg.Done(); _, cancelErr = f.svc.Cancel(ctx, b.ID, "") }()
		wg.Wait()

		require.True(t, (confirmErr == nil) != (cancelErr == nil), "exactly one transition wins")
		final, err := f.svc.Get(ctx, b.ID)
		require.NoError(t, err)
		if confirmErr == nil {
			assert.Equal(t, model.BookingConfirmed, final.Status)
			require.ErrorIs(t, cancelErr, model.ErrInvalidState)
		} else {
			assert.Equal(t, model.BookingCancelled, final.Status)
			require.ErrorIs(t, confirmErr, model.ErrInvalidState)
		}
	}
}

func TestExpiredBookingCannotBeConfirmed(t *testing.T) {
	f := newFixture(t, booking.Config{HoldTTL: time.Minute})
	ctx := context.Background()

	b, err := f.svc.Create(ctx, req("u1", "1-1", "A1"))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.svc.Confirm(ctx, b.ID, "pay_late")
	require.ErrorIs(t, err, model.ErrInvalidState)

	got, err := f.svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
	assert.Equal(t, model.CancelReasonExpired, got.CancelReason)

	held, err := f.svc.HeldSeats(ctx, "1-1")
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestCreateExpiresStaleHoldsOfSameShowtime(t *testing.T) {
	f := newFixture(t, booking.Config{HoldTTL: time.Minute})
	ctx := context.Background()

	stale, err := f.svc.Create(ctx, req("u1", "1-1", "A1"))
	require.NoError(t, err)
	other, err := f.svc.Create(ctx, req("u1", "1-2", "A1"))
	require.NoError(t, err)

	f.clock.Advance(59 * time.Second)
	_, err = f.svc.Create(ctx, req("u2", "1-1", "A1"))
	require.ErrorIs(t, err, model.ErrSeatConflict, "hold still live")

	f.clock.Advance(time.Second)
	fresh, err := f.svc.Create(ctx, req("u2", "1-1", "A1"))
	require.NoError(t, err)
	assert.Equal(t, "u2", fresh.UserID)

	got, err := f.svc.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CancelReasonExpired, got.CancelReason)

	untouched, err := f.svc.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, untouched.Status, "other showtimes are left to the sweeper")
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t, booking.Config{HoldTTL: time.Minute})
	ctx := context.Background()

	old1, err := f.svc.Create(ctx, req("u1", "1-1", "A1"))
	require.NoError(t, err)
	old2, err := f.svc.Create(ctx, req("u1", "1-2", "A1"))
	require.NoError(t, err)
	paid, err := f.svc.Create(ctx, req("u1", "1-3", "A1"))
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, paid.ID, "pay_1")
	require.NoError(t, err)

	f.clock.Advance(30 * time.Second)
	young, err := f.svc.Create(ctx, req("u1", "2-1", "A1"))
	require.NoError(t, err)

	f.clock.Advance(30 * time.Second)
	n, err := f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for id, want := range map[string]model.BookingStatus{
		old1.ID:  model.BookingCancelled,
		old2.ID:  model.BookingCancelled,
		paid.ID:  model.BookingConfirmed,
		young.ID: model.BookingPending,
	} {
		got, err := f.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, id)
	}

	n, err = f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListForUserNewestFirst(t *testing.T) {
	f := newFixture(t, booking.Config{})
	ctx := context.Background()

	first, err := f.svc.Create(ctx, req("u1", "1-1", "A1"))
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.svc.Create(ctx, req("u2", "1-1", "A2"))
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	second, err := f.svc.Create(ctx, req("u1", "1-1", "A3"))
	require.NoError(t, err)

	list, err := f.svc.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	none, err := f.svc.ListForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
