package models

import "time"

type DayAvailability struct {
	Date      time.Time `json:"date"`
	HallID    int64     `json:"hall_id"`
	State     DayState  `json:"state"`
	BookingID int64     `json:"booking_id,omitempty"`
}
