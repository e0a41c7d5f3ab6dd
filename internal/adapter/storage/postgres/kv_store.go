package postgres

import (
	"context"
	"errors"
	"fmt"

	"civic-document-service/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

type kvStore struct {
	pool Pool
}

// NewKVStore creates a PostgreSQL-backed KVStore over the record_store table.
func NewKVStore(pool Pool) ports.KVStore {
	return &kvStore{pool: pool}
}

func (s *kvStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM record_store WHERE key = $1`, key,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading record %s: %w", key, err)
	}
	return payload, nil
}

func (s *kvStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO record_store (key, payload, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing record %s: %w", key, err)
	}
	return nil
}
