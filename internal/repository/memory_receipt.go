package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// MemoryReceiptRepo stores receipts in process memory, indexed by id
// and by booking id.
type MemoryReceiptRepo struct {
	mu        sync.RWMutex
	byID      map[string]model.Receipt
	byBooking map[string]string
}

func NewMemoryReceiptRepo() *MemoryReceiptRepo {
	return &MemoryReceiptRepo{
		byID:      make(map[string]model.Receipt),
		byBooking: make(map[string]string),
	}
}

// CreateOnce stores r unless a receipt already exists for its booking,
// in which case the stored one is returned with created=false.
func (r *MemoryReceiptRepo) CreateOnce(ctx context.Context, rc model.Receipt) (model.Receipt, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Receipt{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byBooking[rc.BookingID]; ok {
		return r.byID[id].Clone(), false, nil
	}
	if _, ok := r.byID[rc.ID]; ok {
		return model.Receipt{}, false, fmt.Errorf("%w: duplicate receipt id %s", ErrConflict, rc.ID)
	}
	r.byID[rc.ID] = rc.Clone()
	r.byBooking[rc.BookingID] = rc.ID
	return rc.Clone(), true, nil
}

func (r *MemoryReceiptRepo) Get(ctx context.Context, id string) (model.Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.byID[id]
	if !ok {
		return model.Receipt{}, fmt.Errorf("%w: receipt %s", model.ErrNotFound, id)
	}
	return rc.Clone(), nil
}

func (r *MemoryReceiptRepo) GetByBooking(ctx context.Context, bookingID string) (model.Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byBooking[bookingID]
	if !ok {
		return model.Receipt{}, fmt.Errorf("%w: receipt for booking %s", model.ErrNotFound, bookingID)
	}
	return r.byID[id].Clone(), nil
}

// ListByUser returns the user's receipts, most recently issued first.
func (r *MemoryReceiptRepo) ListByUser(ctx context.Context, userID string) ([]model.Receipt, error) {
	r.mu.RLock()
	out := make([]model.Receipt, 0)
	for _, rc := range r.byID {
		if rc.UserID == userID {
			out = append(out, rc.Clone())
		}
	}
	r.mu.RUnlock()
	SortReceipts(out)
	return out, nil
}

// SortReceipts orders receipts newest first, breaking ties by id.
func SortReceipts(rs []model.Receipt) {
	slices.SortStableFunc(rs, func(a, b model.Receipt) int {
		if c := b.IssuedAt.Compare(a.IssuedAt); c != 0 {
			return c
		}
		if a.ID > b.ID {
			return -1
		}
		if a.ID < b.ID {
			return 1
		}
		return 0
	})
}
