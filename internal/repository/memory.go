package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hallbook/internal/domain"
	"hallbook/internal/models"
)

// MemoryBookingStore is a process-local BookingStore. The (hall, date)
// uniqueness check and the insert happen under one lock.
type MemoryBookingStore struct {
	mu       sync.Mutex
	nextID   int64
	bookings map[int64]models.Booking
	byDay    map[string]int64
}

func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{
		bookings: make(map[int64]models.Booking),
		byDay:    make(map[string]int64),
	}
}

func dayKey(hallID int64, date time.Time) string {
	return fmt.Sprintf("%d:%s", hallID, models.FormatDate(date))
}

func (s *MemoryBookingStore) InsertBooking(ctx context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey(booking.HallID, booking.Date)
	if _, taken := s.byDay[key]; taken {
		return domain.ErrDuplicateDate
	}

	s.nextID++
	booking.ID = s.nextID
	s.bookings[booking.ID] = *booking
	s.byDay[key] = booking.ID
	return nil
}

func (s *MemoryBookingStore) DeleteBooking(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	delete(s.bookings, id)
	delete(s.byDay, dayKey(b.HallID, b.Date))
	return nil
}

func (s *MemoryBookingStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &b, nil
}

func (s *MemoryBookingStore) QueryByHall(ctx context.Context, hallID int64) ([]*models.Booking, error) {
	return s.query(func(b *models.Booking) bool { return b.HallID == hallID }), nil
}

func (s *MemoryBookingStore) QueryByCustomer(ctx context.Context, customerID int64) ([]*models.Booking, error) {
	return s.query(func(b *models.Booking) bool { return b.CustomerID == customerID }), nil
}

func (s *MemoryBookingStore) QueryAll(ctx context.Context) ([]*models.Booking, error) {
	return s.query(func(*models.Booking) bool { return true }), nil
}

func (s *MemoryBookingStore) query(keep func(*models.Booking) bool) []*models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		b := b
		if keep(&b) {
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MemoryHallCatalog keeps halls in memory; used by the memory driver and tests.
type MemoryHallCatalog struct {
	mu    sync.RWMutex
	halls map[int64]models.Hall
}

func NewMemoryHallCatalog(halls ...models.Hall) *MemoryHallCatalog {
	c := &MemoryHallCatalog{halls: make(map[int64]models.Hall, len(halls))}
	for _, h := range halls {
		c.halls[h.ID] = h
	}
	return c
}

func (c *MemoryHallCatalog) GetHall(ctx context.Context, id int64) (*models.Hall, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h, ok := c.halls[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &h, nil
}

func (c *MemoryHallCatalog) ListHalls(ctx context.Context) ([]*models.Hall, error) {
	return c.list(func(*models.Hall) bool { return true }), nil
}

func (c *MemoryHallCatalog) ListHallsByOwner(ctx context.Context, ownerID int64) ([]*models.Hall, error) {
	return c.list(func(h *models.Hall) bool { return h.OwnedBy(ownerID) }), nil
}

func (c *MemoryHallCatalog) UpsertHall(ctx context.Context, hall *models.Hall) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hall.ID == 0 {
		for id := range c.halls {
			if id > hall.ID {
				hall.ID = id
			}
		}
		hall.ID++
	}
	now := time.Now()
	if hall.CreatedAt.IsZero() {
		hall.CreatedAt = now
	}
	hall.UpdatedAt = now
	c.halls[hall.ID] = *hall
	return nil
}

func (c *MemoryHallCatalog) SetHallApproval(ctx context.Context, id int64, approved bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.halls[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	h.Approved = approved
	h.UpdatedAt = time.Now()
	c.halls[id] = h
	return nil
}

func (c *MemoryHallCatalog) list(keep func(*models.Hall) bool) []*models.Hall {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*models.Hall, 0, len(c.halls))
	for _, h := range c.halls {
		h := h
		if keep(&h) {
			out = append(out, &h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MemoryIntakeLimiter is a fixed-window counter per user.
type MemoryIntakeLimiter struct {
	mu      sync.Mutex
	windows map[int64]*rateLimitEntry
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryIntakeLimiter() *MemoryIntakeLimiter {
	return &MemoryIntakeLimiter{windows: make(map[int64]*rateLimitEntry)}
}

func (l *MemoryIntakeLimiter) Allow(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.windows[userID]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		l.windows[userID] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
