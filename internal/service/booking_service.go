package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hallbook/internal/booking"
	"hallbook/internal/domain"
	"hallbook/internal/events"
	"hallbook/internal/metrics"
	"hallbook/internal/models"

	"github.com/rs/zerolog"
)

// ErrRateLimited is returned when a customer exceeds the intake limit.
var ErrRateLimited = errors.New("too many booking attempts")

type IntakeLimit struct {
	Limit  int
	Window time.Duration
}

// BookingService is the booking engine surface used by the API layers.
type BookingService struct {
	ledger    *booking.Ledger
	index     *booking.AvailabilityIndex
	validator *booking.Validator
	catalog   domain.HallCatalog
	limiter   domain.IntakeLimiter
	limit     IntakeLimit
	eventBus  domain.EventPublisher
	clock     booking.Clock
	logger    *zerolog.Logger
}

type BookingServiceDeps struct {
	Store    domain.BookingStore
	Catalog  domain.HallCatalog
	Limiter  domain.IntakeLimiter // optional
	EventBus domain.EventPublisher
	Clock    booking.Clock
	Intake   booking.IntakeConfig
	Limit    IntakeLimit
}

func NewBookingService(deps BookingServiceDeps, logger *zerolog.Logger) (*BookingService, error) {
	if deps.Clock == nil {
		deps.Clock = booking.SystemClock{Location: time.UTC}
	}

	ledger := booking.NewLedger(deps.Store)
	index := booking.NewAvailabilityIndex(ledger, deps.Clock)
	validator, err := booking.NewValidator(deps.Catalog, index, ledger, deps.Clock, deps.Intake)
	if err != nil {
		return nil, err
	}

	if deps.Limit.Limit <= 0 {
		deps.Limit.Limit = models.DefaultIntakeLimit
	}
	if deps.Limit.Window <= 0 {
		deps.Limit.Window = models.DefaultIntakeWindow * time.Second
	}

	return &BookingService{
		ledger:    ledger,
		index:     index,
		validator: validator,
		catalog:   deps.Catalog,
		limiter:   deps.Limiter,
		limit:     deps.Limit,
		eventBus:  deps.EventBus,
		clock:     deps.Clock,
		logger:    logger,
	}, nil
}

// Today returns the current calendar date of the service.
func (s *BookingService) Today() time.Time {
	return s.clock.Today()
}

// CheckAvailability answers for open halls only; an unapproved hall is NotFound.
func (s *BookingService) CheckAvailability(ctx context.Context, hallID int64, date time.Time) (bool, error) {
	if _, err := s.openHall(ctx, hallID, nil); err != nil {
		return false, err
	}
	return s.index.IsAvailable(ctx, hallID, date)
}

// GetBookingOn returns the booking on (hall, date) or nil when the day is free.
func (s *BookingService) GetBookingOn(ctx context.Context, hallID int64, date time.Time) (*models.Booking, error) {
	if _, err := s.openHall(ctx, hallID, nil); err != nil {
		return nil, err
	}
	return s.index.BookingOn(ctx, hallID, date)
}

// BookingOnFor reports whether (hall, date) is taken and returns the booking
// itself only when user may see it.
func (s *BookingService) BookingOnFor(ctx context.Context, user *models.User, hallID int64, date time.Time) (*models.Booking, bool, error) {
	scope, err := booking.ScopeOf(user)
	if err != nil {
		return nil, false, err
	}
	hall, err := s.openHall(ctx, hallID, user)
	if err != nil {
		return nil, false, err
	}

	b, err := s.index.BookingOn(ctx, hallID, date)
	if err != nil || b == nil {
		return nil, false, err
	}
	if !scope.CanView(b, hall) {
		return nil, true, nil
	}
	return b, true, nil
}

func (s *BookingService) CreateBooking(ctx context.Context, user *models.User, req domain.CreateBookingRequest) (*models.Booking, error) {
	scope, err := booking.ScopeOf(user)
	if err != nil {
		return nil, s.rejected(err)
	}
	if scope.Role != models.RoleCustomer {
		return nil, s.rejected(fmt.Errorf("%w: only customers create bookings", booking.ErrUnauthorized))
	}

	if err := s.allowIntake(ctx, scope.UserID); err != nil {
		return nil, err
	}

	rec, err := s.validator.Submit(ctx, scope.UserID, req)
	if err != nil {
		s.logger.Debug().Err(err).Int64("hall_id", req.HallID).Str("date", req.Date).Int64("user_id", scope.UserID).Msg("booking rejected")
		return nil, s.rejected(err)
	}

	metrics.IncBookingCreated()
	s.logger.Info().
		Int64("booking_id", rec.ID).
		Int64("hall_id", rec.HallID).
		Str("date", rec.DateKey()).
		Int64("user_id", scope.UserID).
		Msg("booking created")

	s.publishEvent(events.EventBookingCreated, rec, user)
	return rec, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, id int64, user *models.User) error {
	scope, err := booking.ScopeOf(user)
	if err != nil {
		return err
	}

	existing, err := s.ledger.Get(ctx, id)
	if err != nil {
		return err
	}

	// Удалённый зал не мешает клиенту или админу отменить бронь
	hall, err := s.hall(ctx, existing.HallID)
	if err != nil && !errors.Is(err, booking.ErrNotFound) {
		return err
	}
	if !scope.CanCancel(existing, hall) {
		return fmt.Errorf("%w: booking %d", booking.ErrUnauthorized, id)
	}

	removed, err := s.ledger.Delete(ctx, id)
	if err != nil {
		return err
	}

	metrics.IncBookingCancelled()
	s.logger.Info().
		Int64("booking_id", removed.ID).
		Int64("hall_id", removed.HallID).
		Str("date", removed.DateKey()).
		Str("role", string(scope.Role)).
		Int64("user_id", scope.UserID).
		Msg("booking cancelled")

	s.publishEvent(events.EventBookingCancelled, removed, user)
	return nil
}

// ListBookings returns the caller's role-scoped bookings narrowed by filter,
// sorted by date.
func (s *BookingService) ListBookings(ctx context.Context, user *models.User, filter models.BookingFilter) ([]models.BookingView, error) {
	views, err := s.Scoped(ctx, user)
	if err != nil {
		return nil, err
	}
	return booking.Apply(views, filter), nil
}

// Scoped returns every booking user may see, annotated with status and
// district. It is the unfiltered set a Selection starts from.
func (s *BookingService) Scoped(ctx context.Context, user *models.User) ([]models.BookingView, error) {
	scope, err := booking.ScopeOf(user)
	if err != nil {
		return nil, err
	}

	var (
		rows  []models.Booking
		halls []*models.Hall
	)
	switch scope.Role {
	case models.RoleCustomer:
		if rows, err = s.ledger.ListByCustomer(ctx, scope.UserID); err != nil {
			return nil, err
		}
		halls, err = s.catalog.ListHalls(ctx)
	case models.RoleOwner:
		if halls, err = s.catalog.ListHallsByOwner(ctx, scope.UserID); err != nil {
			break
		}
		for _, h := range halls {
			hallRows, err := s.ledger.ListByHall(ctx, h.ID)
			if err != nil {
				return nil, err
			}
			rows = append(rows, hallRows...)
		}
	case models.RoleAdmin:
		if rows, err = s.ledger.ListAll(ctx); err != nil {
			return nil, err
		}
		halls, err = s.catalog.ListHalls(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list halls: %w", booking.ErrPersistenceUnavailable, err)
	}

	byID := make(map[int64]*models.Hall, len(halls))
	for _, h := range halls {
		byID[h.ID] = h
	}
	return booking.Annotate(rows, byID, s.clock.Today()), nil
}

// Calendar describes days starting at from. A zero from means today.
// Unapproved halls are NotFound; see CalendarFor.
func (s *BookingService) Calendar(ctx context.Context, hallID int64, from time.Time, days int) ([]models.DayAvailability, error) {
	return s.CalendarFor(ctx, nil, hallID, from, days)
}

// CalendarFor is Calendar for a known caller: the hall's owner and admins
// also see the calendar of an unapproved hall.
func (s *BookingService) CalendarFor(ctx context.Context, user *models.User, hallID int64, from time.Time, days int) ([]models.DayAvailability, error) {
	if days == 0 {
		days = models.DefaultCalendarDays
	}
	if days < 0 || days > models.MaxCalendarDays {
		return nil, &booking.ShapeError{Fields: []booking.FieldError{{
			Field:  "days",
			Reason: fmt.Sprintf("must be between 1 and %d", models.MaxCalendarDays),
		}}}
	}
	if from.IsZero() {
		from = s.clock.Today()
	}

	if _, err := s.openHall(ctx, hallID, user); err != nil {
		return nil, err
	}
	return s.index.Calendar(ctx, hallID, from, days)
}

// Quote returns the total price for guests at the hall.
func (s *BookingService) Quote(ctx context.Context, hallID int64, guests int) (float64, error) {
	if guests <= 0 {
		return 0, &booking.ShapeError{Fields: []booking.FieldError{{Field: "guests", Reason: "must be a positive integer"}}}
	}

	hall, err := s.openHall(ctx, hallID, nil)
	if err != nil {
		return 0, err
	}
	if guests > hall.Capacity {
		return 0, fmt.Errorf("%w: %d guests, capacity %d", booking.ErrCapacityExceeded, guests, hall.Capacity)
	}
	return hall.Quote(guests), nil
}

func (s *BookingService) allowIntake(ctx context.Context, userID int64) error {
	if s.limiter == nil {
		return nil
	}

	ok, err := s.limiter.Allow(ctx, userID, s.limit.Limit, s.limit.Window)
	if err != nil {
		// Лимитер не должен блокировать бронирование
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("intake limiter error")
		return nil
	}
	if !ok {
		metrics.IncBookingRejected("rate_limited")
		return fmt.Errorf("%w: %d per %s", ErrRateLimited, s.limit.Limit, s.limit.Window)
	}
	return nil
}

func (s *BookingService) rejected(err error) error {
	metrics.IncBookingRejected(booking.Reason(err))
	return err
}

func (s *BookingService) hall(ctx context.Context, id int64) (*models.Hall, error) {
	hall, err := s.catalog.GetHall(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: hall %d", booking.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: get hall: %w", booking.ErrPersistenceUnavailable, err)
	}
	if hall == nil {
		return nil, fmt.Errorf("%w: hall %d", booking.ErrNotFound, id)
	}
	return hall, nil
}

// openHall returns the hall if it is approved or user manages it; any
// other hall is NotFound, the same answer intake gives.
func (s *BookingService) openHall(ctx context.Context, id int64, user *models.User) (*models.Hall, error) {
	hall, err := s.hall(ctx, id)
	if err != nil {
		return nil, err
	}
	if !hall.Approved && !canManage(user, hall) {
		return nil, fmt.Errorf("%w: hall %d", booking.ErrNotFound, id)
	}
	return hall, nil
}

func (s *BookingService) publishEvent(eventType string, b *models.Booking, user *models.User) {
	if s.eventBus == nil {
		return
	}

	payload := events.NewBookingPayload(b, user)
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}
