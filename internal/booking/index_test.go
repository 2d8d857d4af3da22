package booking

import (
	"context"
	"sync"
	"testing"

	"hallbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityIndexFollowsLedger(t *testing.T) {
	e := newEngine(t, "2025-05-01")
	ctx := context.Background()
	day := date("2025-06-01")

	ok, err := e.index.IsAvailable(ctx, 1, day)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := e.ledger.Create(ctx, models.Booking{HallID: 1, Date: day, GuestCount: 10, CustomerID: 7})
	require.NoError(t, err)

	ok, err = e.index.IsAvailable(ctx, 1, day)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := e.index.BookingOn(ctx, 1, day)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)

	// другой зал в тот же день свободен
	ok, _ = e.index.IsAvailable(ctx, 2, day)
	assert.True(t, ok)

	_, err = e.ledger.Delete(ctx, rec.ID)
	require.NoError(t, err)

	ok, _ = e.index.IsAvailable(ctx, 1, day)
	assert.True(t, ok)
	got, err = e.index.BookingOn(ctx, 1, day)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAvailabilityIndexLoadsExistingBookings(t *testing.T) {
	e := newEngine(t, "2025-05-01")
	ctx := context.Background()

	// запись напрямую в хранилище, минуя ledger
	require.NoError(t, e.store.InsertBooking(ctx, &models.Booking{HallID: 5, Date: date("2025-07-01"), GuestCount: 1}))

	ok, err := e.index.IsAvailable(ctx, 5, date("2025-07-01"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAvailabilityIndexPastDates(t *testing.T) {
	e := newEngine(t, "2025-05-01")
	ok, err := e.index.IsAvailable(context.Background(), 1, date("2025-04-30"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAvailabilityIndexReadErrors(t *testing.T) {
	ledger := NewLedger(failingStore{err: errDiskGone})
	index := NewAvailabilityIndex(ledger, FixedClock(date("2025-05-01")))

	_, err := index.IsAvailable(context.Background(), 1, date("2025-06-01"))
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)
}

func TestCalendar(t *testing.T) {
	e := newEngine(t, "2025-06-02")
	ctx := context.Background()

	require.NoError(t, e.store.InsertBooking(ctx, &models.Booking{HallID: 1, Date: date("2025-06-01"), GuestCount: 1}))
	rec, err := e.ledger.Create(ctx, models.Booking{HallID: 1, Date: date("2025-06-03"), GuestCount: 1})
	require.NoError(t, err)

	days, err := e.index.Calendar(ctx, 1, date("2025-05-31"), 5)
	require.NoError(t, err)
	require.Len(t, days, 5)

	states := make([]models.DayState, len(days))
	for i, d := range days {
		states[i] = d.State
	}
	assert.Equal(t, []models.DayState{
		models.DayPast, models.DayPast, models.DayFree, models.DayBooked, models.DayFree,
	}, states)
	assert.Equal(t, rec.ID, days[3].BookingID)
	assert.Equal(t, date("2025-06-04"), days[4].Date)
}

func TestAvailabilityIndexConcurrentReads(t *testing.T) {
	e := newEngine(t, "2025-05-01")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = e.ledger.Create(ctx, models.Booking{HallID: 1, Date: date("2025-06-01").AddDate(0, 0, i), GuestCount: 1})
				return
			}
			_, _ = e.index.IsAvailable(ctx, 1, date("2025-06-01"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i += 2 {
		ok, err := e.index.IsAvailable(ctx, 1, date("2025-06-01").AddDate(0, 0, i))
		require.NoError(t, err)
		assert.False(t, ok)
	}
}
