// Package operator authenticates admin panel operators.
package operator

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCreds     = errors.New("credenciais inválidas")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrOperatorNotFound = errors.New("operator not found")
)

type Service struct {
	repo      Repository
	jwtSecret []byte
	jwtTTL    time.Duration
	now       func() time.Time
}

func NewService(repo Repository, jwtSecret []byte, jwtTTL time.Duration) *Service {
	return &Service{repo: repo, jwtSecret: jwtSecret, jwtTTL: jwtTTL, now: time.Now}
}

// HashPassword produces a value suitable for OPERATOR_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) Authenticate(ctx context.Context, login, password string) (string, error) {
	op, err := s.repo.FindByLogin(ctx, login)
	if err != nil {
		return "", ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCreds
	}
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   op.Login,
		ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", err
	}
	return signed, nil
}
