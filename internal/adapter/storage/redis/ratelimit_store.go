package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"civic-document-service/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// incrWindow counts a hit and opens the window's expiry on the first one, in
// a single round trip.
var incrWindow = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RateLimitStore is a fixed-window ports.RateLimiter backed by Redis counters.
type RateLimitStore struct {
	client *goredis.Client
	clock  func() time.Time
}

func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{client: client, clock: time.Now}
}

func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	secs := max(int64(window/time.Second), 1)
	windowID := s.clock().Unix() / secs
	counterKey := rateLimitPrefix + key + ":" + strconv.FormatInt(windowID, 10)

	// The counter outlives its window by a second to absorb clock skew.
	ttl := time.Duration(secs)*time.Second + time.Second
	count, err := incrWindow.Run(ctx, s.client, []string{counterKey}, ttl.Milliseconds()).Int64()
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", key, err)
	}

	return &ports.RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   (windowID + 1) * secs,
	}, nil
}
