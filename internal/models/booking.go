package models

import "time"

type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// FullName joins first and last name.
func (c Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Booking is a whole-day reservation of a hall. Every field is fixed at
// creation; status is derived on read and never stored.
type Booking struct {
	ID         int64     `json:"id"`
	HallID     int64     `json:"hall_id"`
	HallName   string    `json:"hall_name"`
	Date       time.Time `json:"date"`
	GuestCount int       `json:"guest_count"`
	CustomerID int64     `json:"customer_id"`
	Customer   Customer  `json:"customer"`
	CreatedAt  time.Time `json:"created_at"`
}

// DateKey returns the calendar date in DateLayout.
func (b *Booking) DateKey() string {
	return FormatDate(b.Date)
}

// BookingView is a booking annotated for display: derived status plus the
// hall attributes the filters join on.
type BookingView struct {
	Booking
	Status   BookingStatus `json:"status"`
	District string        `json:"district,omitempty"`
}
