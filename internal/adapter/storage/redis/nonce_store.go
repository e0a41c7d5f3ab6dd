package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const noncePrefix = "nonce:"

// NonceStore remembers signed-request nonces per scope until their TTL lapses.
type NonceStore struct {
	client *goredis.Client
}

func NewNonceStore(client *goredis.Client) *NonceStore {
	return &NonceStore{client: client}
}

// CheckAndSet claims nonce within scope. It reports false when the nonce was
// already claimed and has not expired.
func (s *NonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	fresh, err := s.client.SetNX(ctx, nonceKey(scope, nonce), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claiming %s nonce: %w", scope, err)
	}
	return fresh, nil
}

func nonceKey(scope, nonce string) string {
	return noncePrefix + scope + ":" + nonce
}
