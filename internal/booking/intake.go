package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"hallbook/internal/domain"
	"hallbook/internal/models"
)

type IntakeConfig struct {
	MinNameLength  int
	PhonePattern   string
	MaxBookingDays int // 0 disables the horizon
}

// Validator gates booking creation: shape, capacity, availability, then
// commit. A failed step never reaches the ledger.
type Validator struct {
	catalog domain.HallCatalog
	index   *AvailabilityIndex
	ledger  *Ledger
	clock   Clock

	minName int
	phone   *regexp.Regexp
	maxDays int
}

func NewValidator(catalog domain.HallCatalog, index *AvailabilityIndex, ledger *Ledger, clock Clock, cfg IntakeConfig) (*Validator, error) {
	if cfg.MinNameLength <= 0 {
		cfg.MinNameLength = models.DefaultMinNameLength
	}
	if cfg.PhonePattern == "" {
		cfg.PhonePattern = models.DefaultPhonePattern
	}
	phone, err := regexp.Compile(cfg.PhonePattern)
	if err != nil {
		return nil, fmt.Errorf("compile phone pattern: %w", err)
	}

	return &Validator{
		catalog: catalog,
		index:   index,
		ledger:  ledger,
		clock:   clock,
		minName: cfg.MinNameLength,
		phone:   phone,
		maxDays: cfg.MaxBookingDays,
	}, nil
}

// CheckShape normalizes req into a draft booking or returns a *ShapeError
// listing every malformed field.
func (v *Validator) CheckShape(req domain.CreateBookingRequest) (models.Booking, error) {
	shape := &ShapeError{}
	draft := models.Booking{
		HallID:     req.HallID,
		GuestCount: req.GuestCount,
		Customer: models.Customer{
			FirstName: strings.TrimSpace(req.Customer.FirstName),
			LastName:  strings.TrimSpace(req.Customer.LastName),
			Phone:     strings.TrimSpace(req.Customer.Phone),
		},
	}

	if req.HallID <= 0 {
		shape.add("hall_id", "is required")
	}
	if n := utf8.RuneCountInString(draft.Customer.FirstName); n < v.minName {
		shape.add("first_name", fmt.Sprintf("must be at least %d characters", v.minName))
	}
	if n := utf8.RuneCountInString(draft.Customer.LastName); n < v.minName {
		shape.add("last_name", fmt.Sprintf("must be at least %d characters", v.minName))
	}
	if !v.phone.MatchString(draft.Customer.Phone) {
		shape.add("phone", "has invalid format")
	}
	if req.GuestCount <= 0 {
		shape.add("guest_count", "must be a positive integer")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		shape.add("date", err.Error())
	}
	draft.Date = date

	if len(shape.Fields) > 0 {
		return models.Booking{}, shape
	}
	return draft, nil
}

// Submit runs one intake attempt for customerID and commits it on success.
func (v *Validator) Submit(ctx context.Context, customerID int64, req domain.CreateBookingRequest) (*models.Booking, error) {
	draft, err := v.CheckShape(req)
	if err != nil {
		return nil, err
	}

	hall, err := v.hall(ctx, draft.HallID)
	if err != nil {
		return nil, err
	}
	if !hall.Approved {
		return nil, fmt.Errorf("%w: hall %d is not open for booking", ErrNotFound, hall.ID)
	}

	if draft.GuestCount > hall.Capacity {
		return nil, fmt.Errorf("%w: %d guests, capacity %d", ErrCapacityExceeded, draft.GuestCount, hall.Capacity)
	}

	if err := v.checkDate(ctx, hall.ID, draft); err != nil {
		return nil, err
	}

	draft.HallName = hall.Name
	draft.CustomerID = customerID
	rec, err := v.ledger.Create(ctx, draft)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: %w", ErrDateUnavailable, err)
		}
		return nil, err
	}
	return rec, nil
}

func (v *Validator) checkDate(ctx context.Context, hallID int64, draft models.Booking) error {
	today := v.clock.Today()
	if draft.Date.Before(today) {
		return fmt.Errorf("%w: %s is in the past", ErrDateUnavailable, draft.DateKey())
	}
	if v.maxDays > 0 && draft.Date.After(today.AddDate(0, 0, v.maxDays)) {
		return fmt.Errorf("%w: %s is more than %d days ahead", ErrDateUnavailable, draft.DateKey(), v.maxDays)
	}

	ok, err := v.index.IsAvailable(ctx, hallID, draft.Date)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: hall %d is booked on %s", ErrDateUnavailable, hallID, draft.DateKey())
	}
	return nil
}

func (v *Validator) hall(ctx context.Context, id int64) (*models.Hall, error) {
	hall, err := v.catalog.GetHall(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: hall %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: get hall: %w", ErrPersistenceUnavailable, err)
	}
	if hall == nil {
		return nil, fmt.Errorf("%w: hall %d", ErrNotFound, id)
	}
	return hall, nil
}
