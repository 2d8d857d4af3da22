package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hallbook/internal/domain"
	"hallbook/internal/models"
)

// ChangeFunc is invoked after every successful create or delete with the
// hall whose reservations changed.
type ChangeFunc func(ctx context.Context, hallID int64)

// Ledger is the authoritative record of bookings. It does not validate
// requests; the storage layer enforces one booking per hall and date.
type Ledger struct {
	store domain.BookingStore
	now   func() time.Time

	mu        sync.RWMutex
	observers []ChangeFunc
}

func NewLedger(store domain.BookingStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// OnChange registers fn to run after each mutation.
func (l *Ledger) OnChange(fn ChangeFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

func (l *Ledger) notify(ctx context.Context, hallID int64) {
	l.mu.RLock()
	observers := append([]ChangeFunc(nil), l.observers...)
	l.mu.RUnlock()

	for _, fn := range observers {
		fn(ctx, hallID)
	}
}

// Create stores record under a fresh identifier and returns the stored copy.
func (l *Ledger) Create(ctx context.Context, record models.Booking) (*models.Booking, error) {
	rec := record
	rec.ID = 0
	rec.Date = models.DateOf(rec.Date)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now().UTC()
	}

	if err := l.store.InsertBooking(ctx, &rec); err != nil {
		if errors.Is(err, domain.ErrDuplicateDate) {
			return nil, fmt.Errorf("%w: hall %d on %s", ErrConflict, rec.HallID, rec.DateKey())
		}
		return nil, fmt.Errorf("%w: insert booking: %w", ErrPersistenceUnavailable, err)
	}

	l.notify(ctx, rec.HallID)

	out := rec
	return &out, nil
}

// Delete removes the booking and returns the removed record. Whether the
// caller may do so is decided before calling Delete.
func (l *Ledger) Delete(ctx context.Context, id int64) (*models.Booking, error) {
	existing, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := l.store.DeleteBooking(ctx, id); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: booking %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: delete booking: %w", ErrPersistenceUnavailable, err)
	}

	l.notify(ctx, existing.HallID)
	return existing, nil
}

func (l *Ledger) Get(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := l.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: booking %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: get booking: %w", ErrPersistenceUnavailable, err)
	}
	out := *b
	return &out, nil
}

func (l *Ledger) ListByHall(ctx context.Context, hallID int64) ([]models.Booking, error) {
	rows, err := l.store.QueryByHall(ctx, hallID)
	if err != nil {
		return nil, fmt.Errorf("%w: query hall bookings: %w", ErrPersistenceUnavailable, err)
	}
	return snapshot(rows), nil
}

func (l *Ledger) ListByCustomer(ctx context.Context, customerID int64) ([]models.Booking, error) {
	rows, err := l.store.QueryByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("%w: query customer bookings: %w", ErrPersistenceUnavailable, err)
	}
	return snapshot(rows), nil
}

func (l *Ledger) ListAll(ctx context.Context) ([]models.Booking, error) {
	rows, err := l.store.QueryAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query bookings: %w", ErrPersistenceUnavailable, err)
	}
	return snapshot(rows), nil
}

// snapshot copies rows so callers never share memory with the store.
func snapshot(rows []*models.Booking) []models.Booking {
	out := make([]models.Booking, 0, len(rows))
	for _, b := range rows {
		if b == nil {
			continue
		}
		out = append(out, *b)
	}
	return out
}
