package auth

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"fulfillment-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "fulfillment-backend"
	// ShiftTTL is how long a login lasts.
	ShiftTTL = 12 * time.Hour
)

var ErrInvalidToken = errors.New("invalid or expired token")

// ActorClaims is the token body. Subject carries the user id; CanWrite is
// fixed at login from models.WriteRoles so floor clients can hide write
// actions without knowing the role table.
type ActorClaims struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Role     models.UserRole `json:"role"`
	CanWrite bool            `json:"can_write"`
	jwt.RegisteredClaims
}

// Actor turns verified claims into the request actor.
func (c *ActorClaims) Actor() (Actor, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return Actor{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, c.Subject)
	}
	return Actor{ID: uint(id), Name: c.Name, Role: c.Role}, nil
}

func GenerateToken(secret string, user *models.User) (string, error) {
	now := time.Now()
	claims := &ActorClaims{
		Name:     user.Name,
		Email:    user.Email,
		Role:     user.Role,
		CanWrite: slices.Contains(models.WriteRoles, user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ShiftTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies signature, expiry and issuer.
func ParseToken(secret, raw string) (*ActorClaims, error) {
	claims := &ActorClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
