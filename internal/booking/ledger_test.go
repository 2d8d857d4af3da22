package booking

import (
	"context"
	"testing"

	"hallbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerCreate(t *testing.T) {
	e := newEngine(t, "2025-05-01")
	ctx := context.Background()

	var changed []int64
	e.ledger.OnChange(func(_ context.Context, hallID int64) { changed = append(changed, hallID) })

	rec, err := e.ledger.Create(ctx, models.Booking{ID: 42, HallID: 1, Date: date("2025-06-01"), GuestCount: 50, CustomerID: 7})
	require.NoError(t, err)
	assert.NotEqual(t, int64(42), rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, []int64{1}, changed)

	t.Run("ConflictOnSameDay", func(t *testing.T) {
		_, err := e.ledger.Create(ctx, models.Booking{HallID: 1, Date: date("2025-06-01"), GuestCount: 30, CustomerID: 8})
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, []int64{1}, changed)
	})

	t.Run("SnapshotsAreCopies", func(t *testing.T) {
		list, err := e.ledger.ListByHall(ctx, 1)
		require.NoError(t, err)
		require.Len(t, list, 1)
		list[0].GuestCount = 999

		again, err := e.ledger.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, 50, again.GuestCount)
	})
}

func TestLedgerDelete(t *testing.T) {
	e := newEngine(t, "2025-05-01")
	ctx := context.Background()

	rec, err := e.ledger.Create(ctx, models.Booking{HallID: 3, Date: date("2025-06-01"), GuestCount: 5, CustomerID: 7})
	require.NoError(t, err)

	removed, err := e.ledger.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, removed.ID)

	_, err = e.ledger.Delete(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.ledger.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerPersistenceUnavailable(t *testing.T) {
	ledger := NewLedger(failingStore{err: errDiskGone})
	ctx := context.Background()

	_, err := ledger.Create(ctx, models.Booking{HallID: 1, Date: date("2025-06-01")})
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)
	assert.ErrorIs(t, err, errDiskGone)

	_, err = ledger.ListAll(ctx)
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)

	_, err = ledger.Delete(ctx, 1)
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)
}
