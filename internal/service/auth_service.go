package service

import (
	"context"
	"fmt"
	"time"

	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/apperror"
)

// StaffAuthServiceImpl implements ports.StaffAuthService against a fixed set
// of configured accounts.
type StaffAuthServiceImpl struct {
	accounts map[string]string // username -> argon2id hash
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
	// decoy is verified for unknown usernames so both paths cost the same.
	decoy string
}

// NewStaffAuthService creates a new StaffAuthServiceImpl.
func NewStaffAuthService(
	accounts map[string]string,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
) (*StaffAuthServiceImpl, error) {
	decoy, err := hashSvc.Hash("decoy-password")
	if err != nil {
		return nil, fmt.Errorf("hash decoy password: %w", err)
	}
	for username, hash := range accounts {
		if username == "" || hash == "" {
			return nil, fmt.Errorf("staff account %q has an empty username or hash", username)
		}
	}
	return &StaffAuthServiceImpl{
		accounts: accounts,
		hashSvc:  hashSvc,
		tokenSvc: tokenSvc,
		decoy:    decoy,
	}, nil
}

// Login validates credentials and returns a JWT token.
func (s *StaffAuthServiceImpl) Login(_ context.Context, username, password string) (string, time.Time, error) {
	hash, ok := s.accounts[username]
	if !ok {
		_, _ = s.hashSvc.Verify(password, s.decoy)
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, hash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}
