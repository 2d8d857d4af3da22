package domain

import "errors"

// Storage-level sentinels shared by every BookingStore and HallCatalog
// implementation.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateDate  = errors.New("hall already booked on this date")
)
