package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to clients.
const (
	CodeSequenceExhausted   = "ALLOC_001"
	CodeInvalidSignature    = "DIG_001"
	CodeInvalidState        = "TRN_001"
	CodePaymentNotConfirmed = "TRN_002"
	CodeArtifactImmutable   = "TRN_003"
	CodeValidation          = "VAL_001"
	CodePayloadTooLarge     = "VAL_002"
	CodeNotFound            = "RES_001"
	CodeInvalidCredentials  = "AUTH_001"
	CodeInvalidToken        = "AUTH_003"
	CodeInvalidProviderSig  = "SEC_002"
	CodeTimestampExpired    = "SEC_003"
	CodeNonceUsed           = "SEC_004"
	CodeRateLimitExceeded   = "RATE_001"
	CodeInternal            = "SYS_001"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is (or wraps) an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ---- Allocation (ALLOC) ----

// ErrSequenceExhausted is fatal: the prefix/width configuration cannot hold more numbers.
func ErrSequenceExhausted(kind string) *AppError {
	return New(CodeSequenceExhausted, fmt.Sprintf("Reference sequence exhausted for %s", kind), http.StatusInternalServerError)
}

// ---- Digest (DIG) ----

func ErrInvalidSignatureContent(err error) *AppError {
	return Wrap(CodeInvalidSignature, "Signature content is missing or malformed", http.StatusUnprocessableEntity, err)
}

// ---- Lifecycle transitions (TRN) ----

func ErrInvalidState(from, to string) *AppError {
	return New(CodeInvalidState, fmt.Sprintf("Cannot transition from %s to %s", from, to), http.StatusConflict)
}

func ErrPaymentNotConfirmed() *AppError {
	return New(CodePaymentNotConfirmed, "Payment has not been confirmed", http.StatusPaymentRequired)
}

func ErrArtifactImmutable() *AppError {
	return New(CodeArtifactImmutable, "Artifact is issued and can no longer change", http.StatusConflict)
}

// ---- Validation & lookup ----

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrPayloadTooLarge() *AppError {
	return New(CodePayloadTooLarge, "Request body is too large", http.StatusRequestEntityTooLarge)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New(CodeInvalidCredentials, "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Payment provider callbacks (SEC) ----

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidProviderSig, "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New(CodeTimestampExpired, "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New(CodeNonceUsed, "Nonce has already been used", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrEncryptionFailure(err error) *AppError {
	return Wrap(CodeInternal, "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
