package booking

import (
	"context"
	"sync"
	"time"

	"hallbook/internal/models"
)

type hallDays map[string]models.Booking

// AvailabilityIndex maps (hall, date) to the occupying booking. A hall's
// entry is rebuilt from the ledger after every mutation of that hall and
// loaded lazily on first read; entries are replaced, never patched.
type AvailabilityIndex struct {
	ledger *Ledger
	clock  Clock

	// rebuilds are serialized so a slower rebuild never overwrites a newer one
	rebuildMu sync.Mutex

	mu     sync.RWMutex
	byHall map[int64]hallDays
}

func NewAvailabilityIndex(ledger *Ledger, clock Clock) *AvailabilityIndex {
	idx := &AvailabilityIndex{
		ledger: ledger,
		clock:  clock,
		byHall: make(map[int64]hallDays),
	}
	ledger.OnChange(idx.onLedgerChange)
	return idx
}

func (x *AvailabilityIndex) onLedgerChange(ctx context.Context, hallID int64) {
	if _, err := x.Rebuild(ctx, hallID); err != nil {
		// Drop the stale entry; the next read reloads it.
		x.mu.Lock()
		delete(x.byHall, hallID)
		x.mu.Unlock()
	}
}

// Rebuild reloads the hall's entry from the ledger.
func (x *AvailabilityIndex) Rebuild(ctx context.Context, hallID int64) (hallDays, error) {
	x.rebuildMu.Lock()
	defer x.rebuildMu.Unlock()

	bookings, err := x.ledger.ListByHall(ctx, hallID)
	if err != nil {
		return nil, err
	}

	days := make(hallDays, len(bookings))
	for _, b := range bookings {
		days[b.DateKey()] = b
	}

	x.mu.Lock()
	x.byHall[hallID] = days
	x.mu.Unlock()

	return days, nil
}

func (x *AvailabilityIndex) days(ctx context.Context, hallID int64) (hallDays, error) {
	x.mu.RLock()
	days, ok := x.byHall[hallID]
	x.mu.RUnlock()
	if ok {
		return days, nil
	}
	return x.Rebuild(ctx, hallID)
}

// IsAvailable reports whether hallID can be booked on date. Past dates are
// never available.
func (x *AvailabilityIndex) IsAvailable(ctx context.Context, hallID int64, date time.Time) (bool, error) {
	day := models.DateOf(date)
	if day.Before(x.clock.Today()) {
		return false, nil
	}

	days, err := x.days(ctx, hallID)
	if err != nil {
		return false, err
	}
	_, booked := days[models.FormatDate(day)]
	return !booked, nil
}

// BookingOn returns the booking occupying hallID on date, or nil.
func (x *AvailabilityIndex) BookingOn(ctx context.Context, hallID int64, date time.Time) (*models.Booking, error) {
	days, err := x.days(ctx, hallID)
	if err != nil {
		return nil, err
	}
	b, ok := days[models.FormatDate(models.DateOf(date))]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// Calendar describes each day in [from, from+days).
func (x *AvailabilityIndex) Calendar(ctx context.Context, hallID int64, from time.Time, days int) ([]models.DayAvailability, error) {
	booked, err := x.days(ctx, hallID)
	if err != nil {
		return nil, err
	}

	today := x.clock.Today()
	start := models.DateOf(from)
	out := make([]models.DayAvailability, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		entry := models.DayAvailability{Date: day, HallID: hallID, State: models.DayFree}
		if b, ok := booked[models.FormatDate(day)]; ok {
			entry.State = models.DayBooked
			entry.BookingID = b.ID
		}
		if day.Before(today) {
			entry.State = models.DayPast
		}
		out = append(out, entry)
	}
	return out, nil
}
