package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/repository"
)

type bookingStore interface {
	Insert(ctx context.Context, b model.Booking) error
	Get(ctx context.Context, id string) (model.Booking, error)
	Transition(ctx context.Context, id string, t model.Transition) (model.Booking, error)
	HeldSeats(ctx context.Context, showtimeID string) (map[string]struct{}, error)
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
	ListExpired(ctx context.Context, now time.Time, showtimeID string) ([]model.Booking, error)
}

type receiptStore interface {
	CreateOnce(ctx context.Context, rc model.Receipt) (model.Receipt, bool, error)
	Get(ctx context.Context, id string) (model.Receipt, error)
	GetByBooking(ctx context.Context, bookingID string) (model.Receipt, error)
	ListByUser(ctx context.Context, userID string) ([]model.Receipt, error)
}

var (
	_ bookingStore = (*repository.MemoryBookingRepo)(nil)
	_ bookingStore = (*repository.MySQLBookingRepo)(nil)
	_ receiptStore = (*repository.MemoryReceiptRepo)(nil)
	_ receiptStore = (*repository.MySQLReceiptRepo)(nil)
)

var epoch = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

// scope keeps rows of one test apart from every other test sharing the
// same database.
type scope struct {
	showtime string
	user     string
}

func newScope() scope {
	return scope{showtime: "st-" + uuid.NewString()[:8], user: "u-" + uuid.NewString()[:8]}
}

func (s scope) booking(created time.Time, seats ...string) model.Booking {
	b := model.Booking{
		ID:         uuid.NewString(),
		UserID:     s.user,
		ShowID:     "1",
		ShowtimeID: s.showtime,
		Status:     model.BookingPending,
		CreatedAt:  created,
		ExpiresAt:  created.Add(5 * time.Minute),
		UpdatedAt:  created,
	}
	for _, id := range seats {
		b.Seats = append(b.Seats, model.BookingSeat{ID: id, Tier: model.TierRegular, Price: 250})
		b.TotalAmount += 250
	}
	return b
}

func runBookingStoreContract(t *testing.T, newStore func(t *testing.T) bookingStore) {
	ctx := context.Background()

	t.Run("insert and get", func(t *testing.T) {
		store, sc := newStore(t), newScope()
		b := sc.booking(epoch, "A1", "H1")
		require.NoError(t, store.Insert(ctx, b))

		got, err := store.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
		assert.Equal(t, []string{"A1", "H1"}, got.SeatIDs())
		assert.Equal(t, int64(500), got.TotalAmount)
		assert.Equal(t, model.BookingPending, got.Status)
		assert.True(t, b.ExpiresAt.Equal(got.ExpiresAt))

		held, err := store.HeldSeats(ctx, sc.showtime)
		require.NoError(t, err)
		assert.Len(t, held, 2)
		assert.Contains(t, held, "A1")
		assert.Contains(t, held, "H1")
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := newStore(t).Get(ctx, uuid.NewString())
		require.ErrorIs(t, err, model.ErrBookingNotFound)
	})

	t.Run("overlapping insert writes nothing", func(t *testing.T) {
		store, sc := newStore(t), newScope()
		require.NoError(t, store.Insert(ctx, sc.booking(epoch, "A1", "A2")))

		second := sc.booking(epoch, "A3", "A2")
		err := store.Insert(ctx, second)
		var conflict *model.SeatConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"A2"}, conflict.Seats)
		require.ErrorIs(t, err, model.ErrSeatConflict)

		_, err = store.Get(ctx, second.ID)
		require.ErrorIs(t, err, model.ErrBookingNotFound)
		held, err := store.HeldSeats(ctx, sc.showtime)
		require.NoError(t, err)
		assert.NotContains(t, held, "A3")
	})

	t.Run("same seat on another showtime", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Insert(ctx, newScope().booking(epoch, "A1")))
		require.NoError(t, store.Insert(ctx, newScope().booking(epoch, "A1")))
	})

	t.Run("concurrent inserts on one seat", func(t *testing.T) {
		store, sc := newStore(t), newScope()
		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = store.Insert(ctx, sc.booking(epoch, "C5"))
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.True(t, errors.Is(err, model.ErrSeatConflict), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, ok)
	})

	t.Run("confirm keeps seats", func(t *testing.T) {
		store, sc := newStore(t), newScope()
		b := sc.booking(epoch, "B1")
		require.NoError(t, store.Insert(ctx, b))

		at := epoch.Add(time.Minute)
		got, err := store.Transition(ctx, b.ID, model.Transition{To: model.BookingConfirmed, PaymentRef: "pay_1", At: at})
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, got.Status)
		assert.Equal(t, "pay_1", got.PaymentRef)
		assert.True(t, at.Equal(got.UpdatedAt))

		held, err := store.HeldSeats(ctx, sc.showtime)
		require.NoError(t, err)
		assert.Contains(t, held, "B1")

		_, err = store.Transition(ctx, b.ID, model.Transition{To: model.BookingCancelled, At: at})
		require.ErrorIs(t, err, model.ErrInvalidState)
	})

	t.Run("cancel releases seats", func(t *testing.T) {
		store, sc := newStore(t), newScope()
		b := sc.booking(epoch, "D1", "D2")
		require.NoError(t, store.Insert(ctx, b))

		got, err := store.Transition(ctx, b.ID, model.Transition{To: model.BookingCancelled, Reason: model.CancelReasonExpired, At: epoch})
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, got.Status)
		assert.Equal(t, model.CancelReasonExpired, got.CancelReason)

		held, err := store.HeldSeats(ctx, sc.showtime)
		require.NoError(t, err)
		assert.Empty(t, held)

		require.NoError(t, store.Insert(ctx, sc.booking(epoch, "D2")))

		_, err = store.Transition(ctx, b.ID, model.Transition{To: model.BookingConfirmed, PaymentRef: "pay_2", At: epoch})
		require.ErrorIs(t, err, model.ErrInvalidState)
	})

	t.Run("transition unknown", func(t *testing.T) {
		_, err := newStore(t).Transition(ctx, uuid.NewString(), model.Transition{To: model.BookingCancelled, At: epoch})
		require.ErrorIs(t, err, model.ErrBookingNotFound)
	})

	t.Run("list by user newest first", func(t *testing.T) {
		store, sc := newStore(t), newScope()
		older := sc.booking(epoch, "E1")
		newer := sc.booking(epoch.Add(time.Minute), "E2")
		require.NoError(t, store.Insert(ctx, older))
		require.NoError(t, store.Insert(ctx, newer))

		list, err := store.ListByUser(ctx, sc.user)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)
		assert.Equal(t, []string{"E2"}, list[0].SeatIDs())

		none, err := store.ListByUser(ctx, "nobody-"+uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("list expired", func(t *testing.T) {
		store, sc := newStore(t), newScope()
		stale := sc.booking(epoch, "F1")
		fresh := sc.booking(epoch.Add(10*time.Minute), "F2")
		done := sc.booking(epoch, "F3")
		for _, b := range []model.Booking{stale, fresh, done} {
			require.NoError(t, store.Insert(ctx, b))
		}
		_, err := store.Transition(ctx, done.ID, model.Transition{To: model.BookingConfirmed, PaymentRef: "pay_3", At: epoch})
		require.NoError(t, err)

		now := epoch.Add(6 * time.Minute)
		expired, err := store.ListExpired(ctx, now, sc.showtime)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, stale.ID, expired[0].ID)

		other, err := store.ListExpired(ctx, now, newScope().showtime)
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}

func receiptFor(userID string, issued time.Time) model.Receipt {
	return model.Receipt{
		ID:            "rcpt_" + uuid.NewString()[:12],
		BookingID:     uuid.NewString(),
		UserID:        userID,
		Amount:        650,
		PaymentMethod: "Online",
		TransactionID: "pay_abc123",
		IssuedAt:      issued,
		ShowTitle:     "Avengers: Endgame",
		Showtime:      "2024-01-15 10:00 AM",
		Seats:         []string{"A1", "H1"},
	}
}

func runReceiptStoreContract(t *testing.T, newStore func(t *testing.T) receiptStore) {
	ctx := context.Background()

	t.Run("create once", func(t *testing.T) {
		store := newStore(t)
		rc := receiptFor("u-"+uuid.NewString()[:8], epoch)

		stored, created, err := store.CreateOnce(ctx, rc)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, rc.ID, stored.ID)

		dup := rc
		dup.ID = "rcpt_other"
		again, created, err := store.CreateOnce(ctx, dup)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, rc.ID, again.ID)

		got, err := store.Get(ctx, rc.ID)
		require.NoError(t, err)
		assert.Equal(t, rc.Seats, got.Seats)
		assert.Equal(t, rc.Amount, got.Amount)
		assert.Equal(t, rc.ShowTitle, got.ShowTitle)
		assert.True(t, rc.IssuedAt.Equal(got.IssuedAt))

		byBooking, err := store.GetByBooking(ctx, rc.BookingID)
		require.NoError(t, err)
		assert.Equal(t, rc.ID, byBooking.ID)

		_, err = store.Get(ctx, "rcpt_other")
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, "rcpt_"+uuid.NewString())
		require.ErrorIs(t, err, model.ErrNotFound)
		_, err = store.GetByBooking(ctx, uuid.NewString())
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("list by user newest first", func(t *testing.T) {
		store := newStore(t)
		user := "u-" + uuid.NewString()[:8]
		first := receiptFor(user, epoch)
		second := receiptFor(user, epoch.Add(time.Hour))
		for _, rc := range []model.Receipt{first, second, receiptFor("someone-else", epoch)} {
			_, _, err := store.CreateOnce(ctx, rc)
			require.NoError(t, err)
		}

		list, err := store.ListByUser(ctx, user)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, first.ID, list[1].ID)
	})
}
