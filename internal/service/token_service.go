package service

import (
	"errors"
	"fmt"
	"time"

	"civic-document-service/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
)

const staffRole = "staff"

// staffClaims is the payload of a staff session token.
type staffClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTTokenService implements ports.TokenService with HS256 staff session tokens.
type JWTTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
	clock  func() time.Time
}

func NewJWTTokenService(secret string, expiry time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
		clock:  time.Now,
	}
}

// Generate issues a session token for a staff account.
func (s *JWTTokenService) Generate(username string) (string, time.Time, error) {
	now := s.clock()
	expiresAt := now.Add(s.expiry)

	claims := staffClaims{
		Role: staffRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate accepts only unexpired HS256 tokens from this issuer carrying the staff role.
func (s *JWTTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	claims := &staffClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	if claims.Role != staffRole {
		return nil, errors.New("token is not a staff session")
	}
	if claims.Subject == "" {
		return nil, errors.New("missing subject claim")
	}
	return &ports.TokenClaims{Username: claims.Subject}, nil
}
