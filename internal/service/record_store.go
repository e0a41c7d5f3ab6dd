package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"civic-document-service/internal/core/ports"

	"github.com/rs/zerolog"
)

// DefaultDebounce is the coalescing window for deferred writes.
const DefaultDebounce = 750 * time.Millisecond

// maxRetryDelay caps the backoff between attempts to write a payload that
// failed to persist.
const maxRetryDelay = 30 * time.Second

// Flusher forces any deferred write out to durable storage.
type Flusher interface {
	Flush(ctx context.Context) error
}

// RecordStoreOptions tunes a RecordStore.
type RecordStoreOptions struct {
	Debounce time.Duration           // zero = DefaultDebounce
	Sealer   ports.EncryptionService // nil = payloads stored as plain JSON
}

// RecordStore mirrors one entity collection to a key-value backend.
//
// Save is debounced: calls within the window collapse into a single write of
// the newest payload. Mutations still inside the window when the process dies
// are lost; Flush narrows that window at shutdown. A failed write keeps its
// payload and is retried with backoff until it lands or is superseded.
type RecordStore[T any] struct {
	kv       ports.KVStore
	key      string
	debounce time.Duration
	sealer   ports.EncryptionService
	seed     func() []T
	metrics  ports.MetricsRecorder
	log      zerolog.Logger

	mu       sync.Mutex // guards timer, pending and failures
	timer    *time.Timer
	pending  []byte
	failures int

	writeMu sync.Mutex // orders writes to kv
}

// NewRecordStore creates a store for the collection at key.
func NewRecordStore[T any](
	kv ports.KVStore,
	key string,
	opts RecordStoreOptions,
	metrics ports.MetricsRecorder,
	log zerolog.Logger,
) *RecordStore[T] {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &RecordStore[T]{
		kv:       kv,
		key:      key,
		debounce: debounce,
		sealer:   opts.Sealer,
		metrics:  metrics,
		log:      log.With().Str("collection", key).Logger(),
	}
}

// WithSeed sets the reference set returned when storage is empty or corrupt.
func (s *RecordStore[T]) WithSeed(seed func() []T) *RecordStore[T] {
	s.seed = seed
	return s
}

// Key returns the logical storage key.
func (s *RecordStore[T]) Key() string {
	return s.key
}

// Load returns the stored collection in order.
// A payload that cannot be decoded is logged, overwritten and replaced by the
// seed set (or an empty collection); only backend I/O failures are returned.
func (s *RecordStore[T]) Load(ctx context.Context) ([]T, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}

	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.key, err)
	}
	if raw == nil {
		return s.fallback(), nil
	}

	items, err := s.decode(raw)
	if err != nil {
		s.log.Warn().Err(err).Int("bytes", len(raw)).Msg("discarding corrupt collection")
		s.metrics.StoreCorrupt(s.key)

		fallback := s.fallback()
		if payload, encErr := s.encode(fallback); encErr == nil {
			if setErr := s.write(ctx, payload); setErr != nil {
				s.log.Warn().Err(setErr).Msg("failed to overwrite corrupt collection")
			}
		}
		return fallback, nil
	}
	return items, nil
}

// Save schedules a write of the full collection and returns immediately.
// The collection is serialized before Save returns, so callers may keep
// mutating their slice.
func (s *RecordStore[T]) Save(items []T) error {
	payload, err := s.encode(items)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = payload
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.fire)
	return nil
}

// Flush writes the pending payload now, if there is one.
func (s *RecordStore[T]) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	payload := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if payload == nil {
		return nil
	}

	if err := s.write(ctx, payload); err != nil {
		s.mu.Lock()
		if s.pending == nil {
			s.pending = payload
		}
		s.failures++
		// A Save during the write has already armed a timer for the newer payload.
		if s.timer == nil {
			s.timer = time.AfterFunc(s.retryDelay(), s.fire)
		}
		s.mu.Unlock()
		return fmt.Errorf("writing %s: %w", s.key, err)
	}

	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
	return nil
}

// retryDelay doubles the debounce per consecutive failure, up to maxRetryDelay.
// Callers hold s.mu.
func (s *RecordStore[T]) retryDelay() time.Duration {
	d := s.debounce
	for i := 1; i < s.failures && d < maxRetryDelay; i++ {
		d *= 2
	}
	return min(d, maxRetryDelay)
}

func (s *RecordStore[T]) fire() {
	if err := s.Flush(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("deferred write failed")
	}
}

func (s *RecordStore[T]) write(ctx context.Context, payload []byte) error {
	err := s.kv.Set(ctx, s.key, payload)
	s.metrics.StoreWrite(s.key, err)
	return err
}

func (s *RecordStore[T]) encode(items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	if s.sealer == nil {
		return b, nil
	}
	sealed, err := s.sealer.Encrypt(string(b))
	if err != nil {
		return nil, fmt.Errorf("sealing payload: %w", err)
	}
	return []byte(sealed), nil
}

func (s *RecordStore[T]) decode(raw []byte) ([]T, error) {
	if s.sealer != nil {
		plain, err := s.sealer.Decrypt(string(raw))
		if err != nil {
			return nil, fmt.Errorf("unsealing payload: %w", err)
		}
		raw = []byte(plain)
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (s *RecordStore[T]) fallback() []T {
	if s.seed == nil {
		return []T{}
	}
	return s.seed()
}
