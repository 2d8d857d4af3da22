package booking

import (
	"time"

	"hallbook/internal/models"
)

// Clock yields the current calendar date.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the wall clock in Location (time.Local when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return models.DateOf(time.Now().In(loc))
}

// FixedClock always reports the same day.
type FixedClock time.Time

func (c FixedClock) Today() time.Time {
	return models.DateOf(time.Time(c))
}
