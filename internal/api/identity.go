package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hallbook/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var errInvalidToken = errors.New("invalid token")

const defaultTokenTTL = 24 * time.Hour

type userClaims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIdentity resolves the caller from an HS256 bearer token whose
// subject is the user id and whose role claim is the user's role.
type TokenIdentity struct {
	secret []byte
}

func NewTokenIdentity(secret string) *TokenIdentity {
	return &TokenIdentity{secret: []byte(secret)}
}

// CurrentUser returns nil, nil for requests without an Authorization header.
func (p *TokenIdentity) CurrentUser(r *http.Request) (*models.User, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil, nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("%w: expected bearer token", errInvalidToken)
	}
	return p.Parse(strings.TrimSpace(raw))
}

func (p *TokenIdentity) Parse(raw string) (*models.User, error) {
	claims := &userClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidToken, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: bad subject", errInvalidToken)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", errInvalidToken, claims.Role)
	}
	return &models.User{ID: id, Role: claims.Role}, nil
}

// IssueToken signs a token for user valid for ttl (24h when ttl <= 0).
func IssueToken(secret string, user models.User, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if !user.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("unknown role %q", user.Role)
	}

	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := userClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// HeaderIdentity trusts X-User-Id and X-User-Role set by a fronting
// gateway. Used when token auth is disabled.
type HeaderIdentity struct{}

func (HeaderIdentity) CurrentUser(r *http.Request) (*models.User, error) {
	rawID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if rawID == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: bad X-User-Id", errInvalidToken)
	}
	role := models.Role(strings.ToLower(strings.TrimSpace(r.Header.Get("X-User-Role"))))
	if !role.Valid() {
		return nil, fmt.Errorf("%w: bad X-User-Role", errInvalidToken)
	}
	return &models.User{ID: id, Role: role}, nil
}
