package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"civic-document-service/internal/core/domain"
)

// KVStore is the durable key-value collaborator behind the local record store.
// Keys are fixed logical collection names (see domain.Collection*).
type KVStore interface {
	// Get returns nil, nil when the key has never been written.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// RemoteSource is the read side of the authoritative document index.
type RemoteSource interface {
	// Lookup returns nil, nil when the index has no record for reference.
	Lookup(ctx context.Context, reference string) (*domain.RemoteRecord, error)
}

// DocumentIndex is the authoritative persisted-document index.
type DocumentIndex interface {
	RemoteSource
	// Publish records an issued document. Publishing the same reference twice keeps the first record.
	Publish(ctx context.Context, record *domain.RemoteRecord) error
	// Revoke marks a published record as revoked. Returns false if the reference is unknown.
	Revoke(ctx context.Context, reference string) (bool, error)
}

// VerificationLogRepository is the append-only verification audit trail.
type VerificationLogRepository interface {
	Append(ctx context.Context, entry *domain.VerificationLogEntry) error
	ListByReference(ctx context.Context, reference string, limit int) ([]domain.VerificationLogEntry, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}
