package booking

import (
	"sort"
	"strings"
	"time"

	"hallbook/internal/models"
)

// Annotate derives the status of every booking for today and joins the
// district of its hall. Halls missing from the map leave District empty.
func Annotate(bookings []models.Booking, halls map[int64]*models.Hall, today time.Time) []models.BookingView {
	out := make([]models.BookingView, 0, len(bookings))
	for i := range bookings {
		v := models.BookingView{
			Booking: bookings[i],
			Status:  Classify(&bookings[i], today),
		}
		if h, ok := halls[v.HallID]; ok && h != nil {
			v.District = h.District
			if v.HallName == "" {
				v.HallName = h.Name
			}
		}
		out = append(out, v)
	}
	return out
}

// Apply returns the views matching every predicate of f, ascending by date.
// District compares case-insensitively, the same rule as the hall list.
// The input slice is left untouched.
func Apply(views []models.BookingView, f models.BookingFilter) []models.BookingView {
	out := make([]models.BookingView, 0, len(views))
	for _, v := range views {
		if matches(v, f) {
			out = append(out, v)
		}
	}
	sortByDate(out)
	return out
}

func matches(v models.BookingView, f models.BookingFilter) bool {
	if f.HallID != nil && v.HallID != *f.HallID {
		return false
	}
	if d := strings.TrimSpace(f.District); d != "" && !strings.EqualFold(v.District, d) {
		return false
	}
	if f.Status != nil && v.Status != *f.Status {
		return false
	}
	return true
}

// sortByDate orders by date, then by id so equal dates stay deterministic.
func sortByDate(views []models.BookingView) {
	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].Date.Equal(views[j].Date) {
			return views[i].Date.Before(views[j].Date)
		}
		return views[i].ID < views[j].ID
	})
}

// Selection keeps a fetched, role-scoped set so filters can be changed or
// reset without fetching again.
type Selection struct {
	all    []models.BookingView
	filter models.BookingFilter
}

func NewSelection(views []models.BookingView) *Selection {
	return &Selection{all: append([]models.BookingView(nil), views...)}
}

// SetFilters merges f into the current filter and returns the visible set.
func (s *Selection) SetFilters(f models.BookingFilter) []models.BookingView {
	s.filter = s.filter.Merge(f)
	return s.Visible()
}

// Reset clears every predicate and returns the full set.
func (s *Selection) Reset() []models.BookingView {
	s.filter = models.BookingFilter{}
	return s.Visible()
}

func (s *Selection) Visible() []models.BookingView {
	return Apply(s.all, s.filter)
}

func (s *Selection) Filter() models.BookingFilter {
	return s.filter
}

func (s *Selection) Len() int {
	return len(s.all)
}
