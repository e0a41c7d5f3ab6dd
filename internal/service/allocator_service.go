package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"civic-document-service/internal/core/domain"
	"civic-document-service/pkg/apperror"

	"github.com/rs/zerolog"
)

var prefixRe = regexp.MustCompile(`^[A-Z]{2,8}$`)

type counterKey struct {
	kind domain.ArtifactKind
	year int
}

// SequenceAllocator is the single writer of reference-number counters.
// Next is one critical section: read, increment, persist, format.
type SequenceAllocator struct {
	prefixes    map[domain.ArtifactKind]string
	resetYearly bool
	store       *RecordStore[domain.SequenceCounter]
	clock       func() time.Time
	log         zerolog.Logger

	mu       sync.Mutex
	counters map[counterKey]int64
}

// NewSequenceAllocator creates an allocator seeded with initial counter state.
// Unless resetYearly is set the integer behind each kind never resets, and the
// year in the formatted number is only the year of allocation.
func NewSequenceAllocator(
	prefixes map[domain.ArtifactKind]string,
	resetYearly bool,
	initial []domain.SequenceCounter,
	store *RecordStore[domain.SequenceCounter],
	clock func() time.Time,
	log zerolog.Logger,
) (*SequenceAllocator, error) {
	for _, kind := range domain.ArtifactKinds {
		p, ok := prefixes[kind]
		if !ok {
			return nil, fmt.Errorf("missing reference prefix for %s", kind)
		}
		if !prefixRe.MatchString(p) {
			return nil, fmt.Errorf("invalid reference prefix %q for %s", p, kind)
		}
	}
	if clock == nil {
		clock = time.Now
	}

	a := &SequenceAllocator{
		prefixes:    prefixes,
		resetYearly: resetYearly,
		store:       store,
		clock:       clock,
		log:         log,
		counters:    make(map[counterKey]int64),
	}
	for _, c := range initial {
		if c.Value < 0 {
			return nil, fmt.Errorf("negative counter for %s", c.Kind)
		}
		key := a.keyFor(c.Kind, c.Year)
		if c.Value > a.counters[key] {
			a.counters[key] = c.Value
		}
	}
	return a, nil
}

// Next allocates the next reference number for kind.
func (a *SequenceAllocator) Next(ctx context.Context, kind domain.ArtifactKind) (string, error) {
	prefix, ok := a.prefixes[kind]
	if !ok {
		return "", apperror.Validation(fmt.Sprintf("unknown artifact kind %q", kind))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	year := a.clock().Year()
	key := a.keyFor(kind, year)
	next := a.counters[key] + 1
	if next > domain.MaxSequenceValue {
		a.log.Error().Str("kind", string(kind)).Int("year", year).Msg("reference sequence exhausted")
		return "", apperror.ErrSequenceExhausted(string(kind))
	}
	a.counters[key] = next

	// The counter stays advanced even if persisting fails: a gap is
	// acceptable, handing the same integer out twice is not.
	if a.store != nil {
		if err := a.store.Save(a.snapshotLocked()); err != nil {
			return "", apperror.InternalError(fmt.Errorf("saving counters: %w", err))
		}
		if err := a.store.Flush(ctx); err != nil {
			return "", apperror.InternalError(fmt.Errorf("persisting counters: %w", err))
		}
	}

	return domain.FormatReference(prefix, year, next), nil
}

// snapshotLocked returns the counters sorted by kind then year.
func (a *SequenceAllocator) snapshotLocked() []domain.SequenceCounter {
	out := make([]domain.SequenceCounter, 0, len(a.counters))
	for k, v := range a.counters {
		out = append(out, domain.SequenceCounter{Kind: k.kind, Year: k.year, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Year < out[j].Year
	})
	return out
}

func (a *SequenceAllocator) keyFor(kind domain.ArtifactKind, year int) counterKey {
	if !a.resetYearly {
		year = 0
	}
	return counterKey{kind: kind, year: year}
}
