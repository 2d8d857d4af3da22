package models

import "fmt"

type BookingStatus string

const (
	StatusUpcoming BookingStatus = "upcoming"
	StatusPast     BookingStatus = "past"
)

// ParseStatus accepts "upcoming" or "past".
func ParseStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case StatusUpcoming, StatusPast:
		return BookingStatus(s), nil
	default:
		return "", fmt.Errorf("unknown booking status %q", s)
	}
}

// DayState describes a single calendar day of a hall.
type DayState string

const (
	DayPast   DayState = "past"
	DayBooked DayState = "booked"
	DayFree   DayState = "free"
)
