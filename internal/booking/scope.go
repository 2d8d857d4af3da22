package booking

import (
	"fmt"

	"hallbook/internal/models"
)

// Scope is the visibility rule of one caller: customers see their own
// bookings, owners the bookings of halls they own, admins everything.
type Scope struct {
	Role   models.Role
	UserID int64
}

// ScopeOf builds the scope of an authenticated user.
func ScopeOf(user *models.User) (Scope, error) {
	if user == nil {
		return Scope{}, fmt.Errorf("%w: anonymous caller", ErrUnauthorized)
	}
	if !user.Role.Valid() {
		return Scope{}, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, user.Role)
	}
	return Scope{Role: user.Role, UserID: user.ID}, nil
}

// CanView reports whether the scope may see b. hall is the hall b refers
// to and may be nil when it no longer exists.
func (s Scope) CanView(b *models.Booking, hall *models.Hall) bool {
	switch s.Role {
	case models.RoleAdmin:
		return true
	case models.RoleOwner:
		return hall != nil && hall.OwnedBy(s.UserID)
	case models.RoleCustomer:
		return b.CustomerID == s.UserID
	default:
		return false
	}
}

// CanCancel follows the visibility rule: the booking's customer, the hall's
// owner and any admin may cancel.
func (s Scope) CanCancel(b *models.Booking, hall *models.Hall) bool {
	return s.CanView(b, hall)
}
