package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestMintAndVerify(t *testing.T) {
	m := NewManager(testSecret)

	tok, err := m.Mint("card", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if strings.Count(tok, ".") != 2 {
		t.Fatalf("expected a three-part JWT, got %q", tok)
	}

	claims, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "card" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "card")
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		t.Errorf("expected expiry after issue, got %v <= %v", claims.ExpiresAt, claims.IssuedAt)
	}
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	tok, err := NewManager(testSecret).Mint("card", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	_, err = NewManager("another-secret-another-secret-xx").Verify(tok)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	m := NewManager(testSecret)
	claims := jwt.MapClaims{
		"sub": "card",
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	if _, err := m.Verify(tok); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	m := NewManager(testSecret)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "card"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	if _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestOpenManager(t *testing.T) {
	m := NewManager("")
	if !m.Open() {
		t.Fatal("expected open manager")
	}
	if _, err := m.Verify("anything"); err != nil {
		t.Errorf("open manager should accept any token, got %v", err)
	}
	if _, err := m.Verify(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for empty token, got %v", err)
	}
	if _, err := m.Mint("card", time.Hour); !errors.Is(err, ErrNoSecret) {
		t.Errorf("expected ErrNoSecret, got %v", err)
	}
}

func TestMintRequiresSubject(t *testing.T) {
	if _, err := NewManager(testSecret).Mint("", time.Hour); !errors.Is(err, ErrEmptySubject) {
		t.Errorf("expected ErrEmptySubject, got %v", err)
	}
}
