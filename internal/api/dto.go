package api

import (
	"io"
	"time"

	"hallbook/internal/export"
	"hallbook/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// bookingJSON is the wire form of a booking: the date travels as YYYY-MM-DD.
type bookingJSON struct {
	ID         int64                `json:"id"`
	HallID     int64                `json:"hall_id"`
	HallName   string               `json:"hall_name"`
	Date       string               `json:"date"`
	GuestCount int                  `json:"guest_count"`
	CustomerID int64                `json:"customer_id"`
	Customer   models.Customer      `json:"customer"`
	CreatedAt  time.Time            `json:"created_at"`
	Status     models.BookingStatus `json:"status,omitempty"`
	District   string               `json:"district,omitempty"`
}

type dayJSON struct {
	Date  string          `json:"date"`
	State models.DayState `json:"state"`
}

func newBookingJSON(b models.Booking) bookingJSON {
	return bookingJSON{
		ID:         b.ID,
		HallID:     b.HallID,
		HallName:   b.HallName,
		Date:       b.DateKey(),
		GuestCount: b.GuestCount,
		CustomerID: b.CustomerID,
		Customer:   b.Customer,
		CreatedAt:  b.CreatedAt,
	}
}

func newBookingViewJSON(v models.BookingView) bookingJSON {
	out := newBookingJSON(v.Booking)
	out.Status = v.Status
	out.District = v.District
	return out
}

func writeBookingsXLSX(w io.Writer, views []models.BookingView, now time.Time) error {
	return export.WriteBookings(w, views, now)
}
