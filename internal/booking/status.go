package booking

import (
	"time"

	"hallbook/internal/models"
)

// Classify derives the lifecycle status of b. Only calendar dates are
// compared, so a booking dated today stays upcoming for the whole day.
func Classify(b *models.Booking, today time.Time) models.BookingStatus {
	if models.DateOf(b.Date).Before(models.DateOf(today)) {
		return models.StatusPast
	}
	return models.StatusUpcoming
}
