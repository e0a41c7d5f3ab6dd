package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New(CodeInvalidState, "Cannot transition", http.StatusConflict),
			expected: "[TRN_001] Cannot transition",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap(CodeInternal, "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap(CodeInternal, "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New(CodeValidation, "test", http.StatusBadRequest).Unwrap())
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("finalize: %w", ErrPaymentNotConfirmed())

	assert.True(t, HasCode(err, CodePaymentNotConfirmed))
	assert.False(t, HasCode(err, CodeInvalidState))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestLifecycleErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"SequenceExhausted", ErrSequenceExhausted("QRT_ID"), CodeSequenceExhausted, 500},
		{"InvalidSignatureContent", ErrInvalidSignatureContent(nil), CodeInvalidSignature, 422},
		{"InvalidState", ErrInvalidState("ISSUED", "READY"), CodeInvalidState, 409},
		{"PaymentNotConfirmed", ErrPaymentNotConfirmed(), CodePaymentNotConfirmed, 402},
		{"ArtifactImmutable", ErrArtifactImmutable(), CodeArtifactImmutable, 409},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestSecurityErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidSignature", ErrInvalidSignature(), "SEC_002", 401},
		{"TimestampExpired", ErrTimestampExpired(), "SEC_003", 403},
		{"NonceUsed", ErrNonceUsed(), "SEC_004", 403},
		{"InvalidCredentials", ErrInvalidCredentials(), "AUTH_001", 401},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", 401},
		{"RateLimit", ErrRateLimitExceeded(), "RATE_001", 429},
		{"PayloadTooLarge", ErrPayloadTooLarge(), "VAL_002", 413},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestInvalidStateMessage(t *testing.T) {
	err := ErrInvalidState("ISSUED", "REJECTED")
	assert.Equal(t, "Cannot transition from ISSUED to REJECTED", err.Message)
}

func TestNotFoundMessage(t *testing.T) {
	err := ErrNotFound("artifact")
	assert.Equal(t, "artifact not found", err.Message)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
}

func TestInternalError_WrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := InternalError(cause)

	assert.Equal(t, CodeInternal, err.Code)
	assert.ErrorIs(t, err, cause)
}
