package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"hallbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Бронирования"

var headers = []string{"ID", "Зал", "Район", "Дата", "Статус", "Гостей", "Клиент", "Телефон", "Создано"}

// BuildBookings собирает книгу Excel со списком бронирований.
func BuildBookings(views []models.BookingView, generatedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Выгрузка от %s", generatedAt.Format("2006-01-02 15:04")))
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	pastStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#808080"},
	})

	for i, v := range views {
		row := i + 3
		values := []interface{}{
			v.ID,
			v.HallName,
			v.District,
			v.DateKey(),
			statusLabel(v.Status),
			v.GuestCount,
			v.Customer.FullName(),
			v.Customer.Phone,
			v.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
		if v.Status == models.StatusPast {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(values), row)
			_ = f.SetCellStyle(sheetName, first, last, pastStyle)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", "C", 22)
	_ = f.SetColWidth(sheetName, "D", "F", 12)
	_ = f.SetColWidth(sheetName, "G", "I", 24)

	return f, nil
}

// WriteBookings пишет книгу в w (HTTP-ответ).
func WriteBookings(w io.Writer, views []models.BookingView, generatedAt time.Time) error {
	f, err := BuildBookings(views, generatedAt)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveBookings сохраняет книгу в каталог dir и возвращает путь к файлу.
func SaveBookings(dir string, views []models.BookingView, generatedAt time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f, err := BuildBookings(views, generatedAt)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, fmt.Sprintf("bookings_%s.xlsx", generatedAt.Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func statusLabel(s models.BookingStatus) string {
	switch s {
	case models.StatusUpcoming:
		return "Предстоит"
	case models.StatusPast:
		return "Прошла"
	default:
		return string(s)
	}
}
