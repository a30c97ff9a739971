package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-at-least-16-bytes"

func newService() *Service {
	return NewService(testSecret, time.Hour)
}

func TestSignupAndLogin(t *testing.T) {
	s := newService()
	ctx := context.Background()

	p, err := s.Signup(ctx, "Alice@Example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if p.Email != "alice@example.com" {
		t.Errorf("email = %q, want lowercased", p.Email)
	}

	token, expiresAt, err := s.Login(ctx, "alice@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if token == "" {
		t.Fatal("token is empty")
	}
	if !expiresAt.After(time.Now()) {
		t.Error("token already expired at issue")
	}

	id, err := s.VerifyToken(ctx, token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if id != p.ID {
		t.Errorf("token subject = %q, want %q", id, p.ID)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	s := newService()
	ctx := context.Background()

	if _, err := s.Signup(ctx, "a@b.com", "password1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Signup(ctx, "A@B.com", "password2"); !errors.Is(err, ErrPrincipalExists) {
		t.Errorf("Signup() error = %v, want ErrPrincipalExists", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newService()
	ctx := context.Background()

	if _, err := s.Signup(ctx, "a@b.com", "correct-password"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.Login(ctx, "a@b.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := s.Login(ctx, "nobody@b.com", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(unknown) error = %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyToken_Tampered(t *testing.T) {
	s := newService()
	ctx := context.Background()

	token, _, err := s.IssueToken(ctx, "principal-1")
	if err != nil {
		t.Fatal(err)
	}

	// Flip a character in the payload segment.
	parts := strings.Split(token, ".")
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := s.VerifyToken(ctx, tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyToken(tampered) error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	s := NewService(testSecret, -time.Minute)
	ctx := context.Background()

	token, _, err := s.IssueToken(ctx, "principal-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.VerifyToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyToken(expired) error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyToken_NoneAlgorithmRejected(t *testing.T) {
	s := newService()

	// Unsigned token claiming alg "none". Must be rejected regardless of
	// how convincing the claims look.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "principal-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.VerifyToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyToken(alg=none) error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	issuer := NewService("another-secret-16-bytes-long", time.Hour)
	verifier := newService()
	ctx := context.Background()

	token, _, err := issuer.IssueToken(ctx, "principal-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.VerifyToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyToken(wrong secret) error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	s := newService()

	for _, bad := range []string{"", "not-a-jwt", "a.b", "a.b.c.d"} {
		if _, err := s.VerifyToken(context.Background(), bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("VerifyToken(%q) error = %v, want ErrInvalidToken", bad, err)
		}
	}
}
