package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"hallbook/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIdentity(t *testing.T) {
	identity := NewTokenIdentity("secret")

	t.Run("RoundTrip", func(t *testing.T) {
		token, exp, err := IssueToken("secret", owner20, time.Hour)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		user, err := identity.CurrentUser(req)
		require.NoError(t, err)
		assert.Equal(t, &owner20, user)
	})

	t.Run("Anonymous", func(t *testing.T) {
		user, err := identity.CurrentUser(httptest.NewRequest("GET", "/", nil))
		assert.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token, _, err := IssueToken("other", alice, time.Hour)
		require.NoError(t, err)
		_, err = identity.Parse(token)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		claims := userClaims{
			Role: models.RoleCustomer,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "100",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = identity.Parse(token)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("UnknownRole", func(t *testing.T) {
		claims := userClaims{
			Role: "guest",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "100",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = identity.Parse(token)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("IssueRejectsUnknownRole", func(t *testing.T) {
		_, _, err := IssueToken("secret", models.User{ID: 1, Role: "root"}, time.Hour)
		assert.Error(t, err)
	})
}

func TestHeaderIdentity(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-User-Id", "21")
	req.Header.Set("X-User-Role", "Owner")

	user, err := HeaderIdentity{}.CurrentUser(req)
	require.NoError(t, err)
	assert.Equal(t, &owner21, user)

	req.Header.Set("X-User-Role", "superuser")
	_, err = HeaderIdentity{}.CurrentUser(req)
	assert.ErrorIs(t, err, errInvalidToken)

	user, err = HeaderIdentity{}.CurrentUser(httptest.NewRequest("GET", "/", nil))
	assert.NoError(t, err)
	assert.Nil(t, user)
}
