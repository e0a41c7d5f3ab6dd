package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

type verificationLog struct {
	client *goredis.Client
	prefix string
}

// NewVerificationLog creates a Redis-backed VerificationLogRepository.
// Each reference number keeps every attempt in a list, newest first; only
// reads are bounded.
func NewVerificationLog(client *goredis.Client) ports.VerificationLogRepository {
	return &verificationLog{client: client, prefix: "verifylog:"}
}

func (l *verificationLog) Append(ctx context.Context, e *domain.VerificationLogEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling verification log: %w", err)
	}
	key := l.prefix + e.ReferenceNumber

	if err := l.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("redis append verification log: %w", err)
	}
	return nil
}

func (l *verificationLog) ListByReference(ctx context.Context, reference string, limit int) ([]domain.VerificationLogEntry, error) {
	if limit <= 0 {
		return []domain.VerificationLogEntry{}, nil
	}
	raw, err := l.client.LRange(ctx, l.prefix+reference, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list verification log: %w", err)
	}

	entries := make([]domain.VerificationLogEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.VerificationLogEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decoding verification log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
