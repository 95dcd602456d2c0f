package services

import (
	"errors"
	"os"

	"backend/models"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// IdentityResolver maps a bearer credential to a user ID. Resolution runs
// before any other stage of a submission; no side effects.
type IdentityResolver interface {
	Resolve(credential string) (uint, error)
}

// TokenIdentityResolver validates an HS256 JWT and looks the user up by the
// email claim.
type TokenIdentityResolver struct {
	secret []byte
	db     *gorm.DB
}

func NewTokenIdentityResolver(db *gorm.DB) *TokenIdentityResolver {
	return &TokenIdentityResolver{
		secret: []byte(os.Getenv("JWT_SECRET")),
		db:     db,
	}
}

func (r *TokenIdentityResolver) Resolve(credential string) (uint, error) {
	if len(r.secret) == 0 {
		return 0, errors.New("server misconfigured: JWT_SECRET not set")
	}

	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrUnauthorized
	}

	if v, ok := claims["userId"].(float64); ok && v > 0 {
		return uint(v), nil
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return 0, ErrUnauthorized
	}

	var user models.User
	if err := r.db.Where("email = ? AND disabled = ?", email, false).First(&user).Error; err != nil {
		return 0, ErrUnauthorized
	}
	return user.ID, nil
}

// StaticIdentityResolver is a fixed in-process credential map, handy for dev
// fixtures and tests. A zero ID counts as unknown.
type StaticIdentityResolver map[string]uint

func (r StaticIdentityResolver) Resolve(credential string) (uint, error) {
	id, ok := r[credential]
	if !ok || id == 0 {
		return 0, ErrUnauthorized
	}
	return id, nil
}
