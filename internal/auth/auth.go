// Package auth owns the authentication boundary: principal registration,
// credential verification and bearer-token issue/verify. Token validation
// fails closed: anything malformed, expired, tampered or signed with an
// unexpected algorithm is invalid.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers every token rejection reason. Callers get no
	// detail about why a token failed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidCredentials indicates a wrong email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPrincipalExists indicates a signup with an already-registered email.
	ErrPrincipalExists = errors.New("principal already exists")

	// ErrPrincipalNotFound indicates an unknown principal id.
	ErrPrincipalNotFound = errors.New("principal not found")
)

// Principal is a registered chat user.
type Principal struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	CredentialHash string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Service issues and verifies tokens and manages principals. Principals live
// in process memory; the token secret and TTL come from configuration.
type Service struct {
	secret []byte
	ttl    time.Duration

	mu      sync.RWMutex
	byID    map[string]Principal
	byEmail map[string]string // lowercased email -> id
}

// NewService creates the auth service.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		secret:  []byte(secret),
		ttl:     ttl,
		byID:    make(map[string]Principal),
		byEmail: make(map[string]string),
	}
}

// Signup registers a new principal.
func (s *Service) Signup(_ context.Context, email, password string) (Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Principal{}, ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return Principal{}, fmt.Errorf("%w: %s", ErrPrincipalExists, email)
	}

	p := Principal{
		ID:             uuid.NewString(),
		Email:          email,
		CredentialHash: s.hashCredential(password),
		CreatedAt:      time.Now().UTC(),
	}
	s.byID[p.ID] = p
	s.byEmail[email] = p.ID
	return p, nil
}

// Login verifies the email/password pair and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	id, ok := s.byEmail[email]
	var p Principal
	if ok {
		p = s.byID[id]
	}
	s.mu.RUnlock()

	if !ok || !hmac.Equal([]byte(p.CredentialHash), []byte(s.hashCredential(password))) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.IssueToken(ctx, p.ID)
}

// Get returns the principal with the given id.
func (s *Service) Get(_ context.Context, id string) (Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return Principal{}, fmt.Errorf("%w: %s", ErrPrincipalNotFound, id)
	}
	return p, nil
}

// IssueToken returns a signed bearer token for the principal.
func (s *Service) IssueToken(_ context.Context, principalID string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   principalID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken returns the principal id carried by a valid token. The
// accepted signing method is pinned to HS256.
func (s *Service) VerifyToken(_ context.Context, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// hashCredential derives the stored credential hash. Keyed HMAC-SHA256 over
// the password; adequate for a demo-grade principal store, not a substitute
// for a slow password hash.
func (s *Service) hashCredential(password string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}
