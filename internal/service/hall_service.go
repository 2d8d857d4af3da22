package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"hallbook/internal/booking"
	"hallbook/internal/domain"
	"hallbook/internal/events"
	"hallbook/internal/models"

	"github.com/rs/zerolog"
)

type HallService struct {
	catalog  domain.HallAdmin
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewHallService(catalog domain.HallAdmin, eventBus domain.EventPublisher, logger *zerolog.Logger) *HallService {
	return &HallService{
		catalog:  catalog,
		eventBus: eventBus,
		logger:   logger,
	}
}

// GetHall returns the hall. Unapproved halls are visible to admins and to
// their owner only.
func (s *HallService) GetHall(ctx context.Context, id int64, user *models.User) (*models.Hall, error) {
	hall, err := s.catalog.GetHall(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: hall %d", booking.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: get hall: %w", booking.ErrPersistenceUnavailable, err)
	}

	if !hall.Approved && !canManage(user, hall) {
		return nil, fmt.Errorf("%w: hall %d", booking.ErrNotFound, id)
	}
	return hall, nil
}

// ListHalls returns the halls matching q. District is matched exactly and
// Search as a substring of name or address, both ignoring case. Without
// q.Sort halls come ordered by id; ties in price or capacity keep id order.
func (s *HallService) ListHalls(ctx context.Context, q models.HallQuery) ([]*models.Hall, error) {
	if !q.Sort.Valid() {
		return nil, &booking.ShapeError{Fields: []booking.FieldError{{
			Field:  "sort",
			Reason: "must be one of price_asc, price_desc, capacity_asc, capacity_desc",
		}}}
	}

	halls, err := s.catalog.ListHalls(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list halls: %w", booking.ErrPersistenceUnavailable, err)
	}

	district := strings.TrimSpace(q.District)
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]*models.Hall, 0, len(halls))
	for _, h := range halls {
		if q.ApprovedOnly && !h.Approved {
			continue
		}
		if district != "" && !strings.EqualFold(h.District, district) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(h.Name), search) &&
			!strings.Contains(strings.ToLower(h.Address), search) {
			continue
		}
		out = append(out, h)
	}
	sortHalls(out, q.Sort)
	return out, nil
}

func sortHalls(halls []*models.Hall, order models.HallSort) {
	sort.SliceStable(halls, func(i, j int) bool {
		a, b := halls[i], halls[j]
		switch order {
		case models.SortPriceAsc:
			if a.PricePerGuest != b.PricePerGuest {
				return a.PricePerGuest < b.PricePerGuest
			}
		case models.SortPriceDesc:
			if a.PricePerGuest != b.PricePerGuest {
				return a.PricePerGuest > b.PricePerGuest
			}
		case models.SortCapacityAsc:
			if a.Capacity != b.Capacity {
				return a.Capacity < b.Capacity
			}
		case models.SortCapacityDesc:
			if a.Capacity != b.Capacity {
				return a.Capacity > b.Capacity
			}
		}
		return a.ID < b.ID
	})
}

// OwnedHalls returns the halls managed by the owner.
func (s *HallService) OwnedHalls(ctx context.Context, user *models.User) ([]*models.Hall, error) {
	if user == nil || user.Role != models.RoleOwner {
		return nil, fmt.Errorf("%w: owners only", booking.ErrUnauthorized)
	}
	halls, err := s.catalog.ListHallsByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: list halls: %w", booking.ErrPersistenceUnavailable, err)
	}
	return halls, nil
}

// ApproveHall opens the hall for customer bookings. Admins only.
func (s *HallService) ApproveHall(ctx context.Context, id int64, user *models.User) error {
	return s.setApproval(ctx, id, true, user)
}

// SuspendHall closes the hall for new bookings; existing bookings stay.
func (s *HallService) SuspendHall(ctx context.Context, id int64, user *models.User) error {
	return s.setApproval(ctx, id, false, user)
}

func (s *HallService) setApproval(ctx context.Context, id int64, approved bool, user *models.User) error {
	if user == nil || user.Role != models.RoleAdmin {
		return fmt.Errorf("%w: admins only", booking.ErrUnauthorized)
	}

	hall, err := s.GetHall(ctx, id, user)
	if err != nil {
		return err
	}

	if err := s.catalog.SetHallApproval(ctx, id, approved); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return fmt.Errorf("%w: hall %d", booking.ErrNotFound, id)
		}
		return fmt.Errorf("%w: set approval: %w", booking.ErrPersistenceUnavailable, err)
	}

	s.logger.Info().Int64("hall_id", id).Bool("approved", approved).Int64("admin_id", user.ID).Msg("hall approval changed")

	if s.eventBus != nil {
		payload := events.HallEventPayload{
			HallID:      id,
			HallName:    hall.Name,
			Approved:    approved,
			ChangedByID: user.ID,
		}
		if err := s.eventBus.PublishJSON(events.EventHallApproved, payload); err != nil {
			s.logger.Error().Err(err).Int64("hall_id", id).Msg("publish event error")
		}
	}
	return nil
}

func canManage(user *models.User, hall *models.Hall) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case models.RoleAdmin:
		return true
	case models.RoleOwner:
		return hall.OwnedBy(user.ID)
	}
	return false
}
