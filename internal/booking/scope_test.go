package booking

import (
	"testing"

	"hallbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeOf(t *testing.T) {
	_, err := ScopeOf(nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = ScopeOf(&models.User{ID: 1, Role: "guest"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	s, err := ScopeOf(&models.User{ID: 1, Role: models.RoleOwner})
	require.NoError(t, err)
	assert.Equal(t, Scope{Role: models.RoleOwner, UserID: 1}, s)
}

func TestScopeCanView(t *testing.T) {
	hall := &models.Hall{ID: 1, OwnerID: 20}
	b := &models.Booking{ID: 1, HallID: 1, CustomerID: 10}

	tests := []struct {
		name  string
		scope Scope
		hall  *models.Hall
		want  bool
	}{
		{"own customer", Scope{Role: models.RoleCustomer, UserID: 10}, hall, true},
		{"other customer", Scope{Role: models.RoleCustomer, UserID: 11}, hall, false},
		{"hall owner", Scope{Role: models.RoleOwner, UserID: 20}, hall, true},
		{"other owner", Scope{Role: models.RoleOwner, UserID: 21}, hall, false},
		{"owner of missing hall", Scope{Role: models.RoleOwner, UserID: 20}, nil, false},
		{"admin", Scope{Role: models.RoleAdmin, UserID: 1}, hall, true},
		{"admin missing hall", Scope{Role: models.RoleAdmin, UserID: 1}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.CanView(b, tt.hall))
			assert.Equal(t, tt.want, tt.scope.CanCancel(b, tt.hall))
		})
	}
}
