package export

import (
	"bytes"
	"testing"
	"time"

	"hallbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleViews() []models.BookingView {
	upcoming, _ := models.ParseDate("2030-06-01")
	past, _ := models.ParseDate("2020-06-01")
	return []models.BookingView{
		{
			Booking: models.Booking{
				ID: 1, HallID: 1, HallName: "Navruz", Date: past, GuestCount: 80,
				Customer: models.Customer{FirstName: "Aziz", LastName: "Karimov", Phone: "+998901234567"},
			},
			Status:   models.StatusPast,
			District: "Chilonzor",
		},
		{
			Booking: models.Booking{
				ID: 2, HallID: 1, HallName: "Navruz", Date: upcoming, GuestCount: 150,
				Customer: models.Customer{FirstName: "Malika", LastName: "Usmonova", Phone: "+998935550000"},
			},
			Status:   models.StatusUpcoming,
			District: "Chilonzor",
		},
	}
}

func TestWriteBookings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBookings(&buf, sampleViews(), time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Выгрузка от 2030-01-01 12:00", rows[0][0])
	assert.Equal(t, headers, rows[1])
	assert.Equal(t, "2020-06-01", rows[2][3])
	assert.Equal(t, "Прошла", rows[2][4])
	assert.Equal(t, "Malika Usmonova", rows[3][6])
	assert.Equal(t, "Предстоит", rows[3][4])
}

func TestSaveBookings(t *testing.T) {
	dir := t.TempDir()
	path, err := SaveBookings(dir, sampleViews(), time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{sheetName}, f.GetSheetList())
}

func TestWriteBookingsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBookings(&buf, nil, time.Now()))
	assert.NotZero(t, buf.Len())
}
