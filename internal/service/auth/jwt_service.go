package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/ports"
)

// ErrInvalidToken is returned for any token that does not verify.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the custom JWT claims used by the application.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type"` // "access"
}

// JWTService issues and verifies HS256 bearer tokens. The subject becomes
// the user id recorded next to each translation.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
	duration time.Duration
	log      *zap.Logger
}

var _ ports.TokenValidator = (*JWTService)(nil)

// NewJWTService creates a new JWTService instance.
func NewJWTService(secret, issuer, audience string, duration time.Duration, log *zap.Logger) *JWTService {
	if duration <= 0 {
		duration = 24 * time.Hour
	}
	log.Info("JWT service initialized",
		zap.String("issuer", issuer),
		zap.Duration("duration", duration),
	)

	return &JWTService{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		duration: duration,
		log:      log,
	}
}

// GenerateToken creates a signed access token for userID.
func (s *JWTService) GenerateToken(userID string) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		Type: "access",
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.secret)
	if err != nil {
		s.log.Error("failed to sign access token",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	s.log.Debug("access token generated",
		zap.String("user_id", userID),
		zap.String("jti", jti),
	)

	return signedToken, nil
}

// ValidateToken parses and validates a token string and returns its subject.
func (s *JWTService) ValidateToken(ctx context.Context, tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		s.log.Debug("token validation failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != "access" || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	s.log.Debug("token validated",
		zap.String("subject", claims.Subject),
		zap.String("jti", claims.ID),
	)

	return claims.Subject, nil
}
