package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hallbook/internal/domain"
	"hallbook/internal/models"

	"github.com/Masterminds/squirrel"
)

var bookingColumns = []string{
	"id", "hall_id", "hall_name", "date", "guest_count",
	"customer_id", "first_name", "last_name", "phone", "created_at",
}

// InsertBooking сохраняет бронирование. Повтор пары (hall_id, date)
// отклоняется уникальным индексом и возвращает domain.ErrDuplicateDate.
func (db *DB) InsertBooking(ctx context.Context, booking *models.Booking) error {
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}

	query, args, err := db.sb.Insert("bookings").
		Columns("hall_id", "hall_name", "date", "guest_count", "customer_id", "first_name", "last_name", "phone", "created_at").
		Values(
			booking.HallID,
			booking.HallName,
			models.FormatDate(booking.Date),
			booking.GuestCount,
			booking.CustomerID,
			booking.Customer.FirstName,
			booking.Customer.LastName,
			booking.Customer.Phone,
			booking.CreatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert booking: %w", err)
	}

	if err := db.db.QueryRowContext(ctx, query, args...).Scan(&booking.ID); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateDate
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	db.logger.Debug().
		Int64("booking_id", booking.ID).
		Int64("hall_id", booking.HallID).
		Str("date", booking.DateKey()).
		Msg("Booking stored")
	return nil
}

func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	query, args, err := db.sb.Delete("bookings").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete booking: %w", err)
	}

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// GetBooking возвращает бронирование по ID
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query, args, err := db.sb.Select(bookingColumns...).From("bookings").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking: %w", err)
	}

	booking, err := scanBooking(db.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

func (db *DB) QueryByHall(ctx context.Context, hallID int64) ([]*models.Booking, error) {
	return db.queryBookings(ctx, squirrel.Eq{"hall_id": hallID})
}

func (db *DB) QueryByCustomer(ctx context.Context, customerID int64) ([]*models.Booking, error) {
	return db.queryBookings(ctx, squirrel.Eq{"customer_id": customerID})
}

func (db *DB) QueryAll(ctx context.Context) ([]*models.Booking, error) {
	return db.queryBookings(ctx, nil)
}

func (db *DB) queryBookings(ctx context.Context, where squirrel.Sqlizer) ([]*models.Booking, error) {
	builder := db.sb.Select(bookingColumns...).From("bookings").OrderBy("date", "id")
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query bookings: %w", err)
	}

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		booking models.Booking
		date    string
	)
	err := row.Scan(
		&booking.ID,
		&booking.HallID,
		&booking.HallName,
		&date,
		&booking.GuestCount,
		&booking.CustomerID,
		&booking.Customer.FirstName,
		&booking.Customer.LastName,
		&booking.Customer.Phone,
		&booking.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	booking.Date, err = models.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("booking %d: %w", booking.ID, err)
	}
	return &booking, nil
}
