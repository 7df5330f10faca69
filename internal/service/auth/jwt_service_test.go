package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestValidateToken_RoundTrip(t *testing.T) {
	// Arrange
	svc := NewJWTService("test-secret-key", "voz-visible", "", time.Hour, newTestLogger())
	token, err := svc.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Act
	userID, err := svc.ValidateToken(context.Background(), token)

	// Assert
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if userID != "user-123" {
		t.Errorf("expected user-123, got %s", userID)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuer := NewJWTService("secret-a", "", "", time.Hour, newTestLogger())
	verifier := NewJWTService("secret-b", "", "", time.Hour, newTestLogger())
	token, _ := issuer.GenerateToken("user-1")

	_, err := verifier.ValidateToken(context.Background(), token)

	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	// Arrange
	svc := NewJWTService("test-secret-key", "", "", time.Hour, newTestLogger())
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Type: "access",
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key"))

	// Act
	_, err := svc.ValidateToken(context.Background(), token)

	// Assert
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	svc := NewJWTService("test-secret-key", "", "", time.Hour, newTestLogger())
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Type:             "access",
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret-key"))

	if _, err := svc.ValidateToken(context.Background(), token); err == nil {
		t.Error("expected HS512 token to be rejected")
	}
}

func TestValidateToken_WrongType(t *testing.T) {
	svc := NewJWTService("test-secret-key", "", "", time.Hour, newTestLogger())
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: "refresh",
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key"))

	if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected refresh token to be rejected, got %v", err)
	}
}
