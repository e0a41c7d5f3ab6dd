package redis

import (
	"context"
	"errors"
	"fmt"

	"civic-document-service/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

type kvStore struct {
	client *goredis.Client
	prefix string
}

// NewKVStore creates a Redis-backed KVStore. Collections live under records:<key>.
func NewKVStore(client *goredis.Client) ports.KVStore {
	return &kvStore{client: client, prefix: "records:"}
}

func (s *kvStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (s *kvStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
