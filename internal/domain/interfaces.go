package domain

import (
	"context"
	"net/http"
	"time"

	"hallbook/internal/models"
)

// BookingStore is the durable persistence service. Insert must enforce
// at most one booking per (hall, date) atomically.
type BookingStore interface {
	InsertBooking(ctx context.Context, booking *models.Booking) error
	DeleteBooking(ctx context.Context, id int64) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	QueryByHall(ctx context.Context, hallID int64) ([]*models.Booking, error)
	QueryByCustomer(ctx context.Context, customerID int64) ([]*models.Booking, error)
	QueryAll(ctx context.Context) ([]*models.Booking, error)
}

// HallCatalog owns hall records. The booking engine reads it only.
type HallCatalog interface {
	GetHall(ctx context.Context, id int64) (*models.Hall, error)
	ListHalls(ctx context.Context) ([]*models.Hall, error)
	ListHallsByOwner(ctx context.Context, ownerID int64) ([]*models.Hall, error)
}

// HallAdmin is the write side of the catalog used for approvals.
type HallAdmin interface {
	HallCatalog
	UpsertHall(ctx context.Context, hall *models.Hall) error
	SetHallApproval(ctx context.Context, id int64, approved bool) error
}

// IdentityProvider resolves the caller of a request. A nil user with a nil
// error means the request is anonymous.
type IdentityProvider interface {
	CurrentUser(r *http.Request) (*models.User, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type IntakeLimiter interface {
	Allow(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type BookingService interface {
	CheckAvailability(ctx context.Context, hallID int64, date time.Time) (bool, error)
	GetBookingOn(ctx context.Context, hallID int64, date time.Time) (*models.Booking, error)
	BookingOnFor(ctx context.Context, user *models.User, hallID int64, date time.Time) (*models.Booking, bool, error)
	CreateBooking(ctx context.Context, user *models.User, req CreateBookingRequest) (*models.Booking, error)
	CancelBooking(ctx context.Context, id int64, user *models.User) error
	ListBookings(ctx context.Context, user *models.User, filter models.BookingFilter) ([]models.BookingView, error)
	Calendar(ctx context.Context, hallID int64, from time.Time, days int) ([]models.DayAvailability, error)
	CalendarFor(ctx context.Context, user *models.User, hallID int64, from time.Time, days int) ([]models.DayAvailability, error)
	Quote(ctx context.Context, hallID int64, guests int) (float64, error)
}

type HallService interface {
	GetHall(ctx context.Context, id int64, user *models.User) (*models.Hall, error)
	ListHalls(ctx context.Context, q models.HallQuery) ([]*models.Hall, error)
	OwnedHalls(ctx context.Context, user *models.User) ([]*models.Hall, error)
	ApproveHall(ctx context.Context, id int64, user *models.User) error
	SuspendHall(ctx context.Context, id int64, user *models.User) error
}

// CreateBookingRequest is the raw intake payload. Date stays a string so
// that parsing is part of shape validation.
type CreateBookingRequest struct {
	HallID     int64           `json:"hall_id"`
	Date       string          `json:"date"`
	GuestCount int             `json:"guest_count"`
	Customer   models.Customer `json:"customer"`
}
