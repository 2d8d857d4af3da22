package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"hallbook/internal/domain"
	"hallbook/internal/models"
	"hallbook/internal/repository"

	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

type engine struct {
	store     *repository.MemoryBookingStore
	catalog   *repository.MemoryHallCatalog
	ledger    *Ledger
	index     *AvailabilityIndex
	validator *Validator
}

func newEngine(t *testing.T, today string, halls ...models.Hall) *engine {
	t.Helper()
	clock := FixedClock(date(today))
	store := repository.NewMemoryBookingStore()
	catalog := repository.NewMemoryHallCatalog(halls...)
	ledger := NewLedger(store)
	index := NewAvailabilityIndex(ledger, clock)
	validator, err := NewValidator(catalog, index, ledger, clock, IntakeConfig{MaxBookingDays: 730})
	require.NoError(t, err)
	return &engine{store: store, catalog: catalog, ledger: ledger, index: index, validator: validator}
}

func request(hallID int64, day string, guests int) domain.CreateBookingRequest {
	return domain.CreateBookingRequest{
		HallID:     hallID,
		Date:       day,
		GuestCount: guests,
		Customer:   models.Customer{FirstName: "Aziz", LastName: "Karimov", Phone: "+998901234567"},
	}
}

// failingStore fails every call with err.
type failingStore struct{ err error }

func (s failingStore) InsertBooking(context.Context, *models.Booking) error { return s.err }
func (s failingStore) DeleteBooking(context.Context, int64) error           { return s.err }
func (s failingStore) GetBooking(context.Context, int64) (*models.Booking, error) {
	return nil, s.err
}
func (s failingStore) QueryByHall(context.Context, int64) ([]*models.Booking, error) {
	return nil, s.err
}
func (s failingStore) QueryByCustomer(context.Context, int64) ([]*models.Booking, error) {
	return nil, s.err
}
func (s failingStore) QueryAll(context.Context) ([]*models.Booking, error) { return nil, s.err }

var errDiskGone = errors.New("disk gone")
