// Package auth gates backtest task creation behind a bearer token. It is
// deliberately minimal: an in-memory email/password store backing a JWT
// issuer, since the backtest core has no concept of a user account of its
// own — auth exists only to keep the HTTP surface from being wide open.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Service issues and validates bearer tokens for API callers, backed by
// an in-memory credential store.
type Service struct {
	issuer string
	secret []byte
	ttl    time.Duration

	mu    sync.RWMutex
	users map[string]string // email -> bcrypt hash
}

// NewService builds a Service signing tokens as issuer with secret and ttl.
func NewService(issuer string, secret []byte, ttl time.Duration) *Service {
	return &Service{
		issuer: issuer,
		secret: secret,
		ttl:    ttl,
		users:  make(map[string]string),
	}
}

// Register creates a new credential, failing if email is already taken.
func (s *Service) Register(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return errors.New("email and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return errors.New("email already registered")
	}
	s.users[email] = string(hash)
	return nil
}

// Login verifies email/password and returns a signed bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	hash, ok := s.users[email]
	s.mu.RUnlock()
	if !ok {
		return "", errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}
	return s.signToken(email)
}

func (s *Service) signToken(subject string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// ParseToken validates a bearer token and returns its subject (the
// caller's email).
func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Issuer != s.issuer {
		return "", errors.New("invalid issuer")
	}
	if claims.Subject == "" {
		return "", errors.New("invalid subject")
	}
	return claims.Subject, nil
}
