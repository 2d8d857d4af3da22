package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf(t *testing.T) {
	tashkent := time.FixedZone("UTC+5", 5*60*60)

	t.Run("DropsClock", func(t *testing.T) {
		got := DateOf(time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC))
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("KeepsLocalCalendarDay", func(t *testing.T) {
		// 2025-06-01 02:00 in UTC+5 is still 2025-05-31 in UTC.
		local := time.Date(2025, 6, 1, 2, 0, 0, 0, tashkent)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), DateOf(local))
		assert.Equal(t, time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), DateOf(local.UTC()))
	})
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate(" 2025-06-01 ")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", FormatDate(got))

	_, err = ParseDate("")
	assert.Error(t, err)

	_, err = ParseDate("01.06.2025")
	assert.Error(t, err)

	_, err = ParseDate("2025-02-30")
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("upcoming")
	require.NoError(t, err)
	assert.Equal(t, StatusUpcoming, s)

	s, err = ParseStatus("past")
	require.NoError(t, err)
	assert.Equal(t, StatusPast, s)

	_, err = ParseStatus("archived")
	assert.Error(t, err)
}

func TestBookingFilterMerge(t *testing.T) {
	hall := int64(7)
	upcoming := StatusUpcoming

	base := BookingFilter{HallID: &hall}
	merged := base.Merge(BookingFilter{Status: &upcoming})

	require.NotNil(t, merged.HallID)
	assert.Equal(t, int64(7), *merged.HallID)
	require.NotNil(t, merged.Status)
	assert.Equal(t, StatusUpcoming, *merged.Status)
	assert.True(t, BookingFilter{}.IsEmpty())
	assert.False(t, merged.IsEmpty())
}

func TestHallHelpers(t *testing.T) {
	h := Hall{ID: 1, Capacity: 100, PricePerGuest: 12.5, OwnerID: 42}
	assert.True(t, h.OwnedBy(42))
	assert.False(t, h.OwnedBy(43))
	assert.Equal(t, 625.0, h.Quote(50))

	unassigned := Hall{ID: 2}
	assert.False(t, unassigned.HasOwner())
	assert.False(t, unassigned.OwnedBy(0))
}
