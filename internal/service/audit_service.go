package service

import (
	"context"
	"time"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"

	"github.com/rs/zerolog"
)

const (
	defaultAuditBuffer = 256
	auditDrainTimeout  = 5 * time.Second
)

// AuditService writes every entry to the log immediately and persists it
// from a single background writer. Entries are dropped when the queue is full.
type AuditService struct {
	repo  ports.AuditRepository
	queue chan *domain.AuditLog
	log   zerolog.Logger
}

// NewAuditService creates an audit service. A nil repo keeps entries in the log only.
func NewAuditService(repo ports.AuditRepository, buffer int, log zerolog.Logger) *AuditService {
	if buffer <= 0 {
		buffer = defaultAuditBuffer
	}
	return &AuditService{
		repo:  repo,
		queue: make(chan *domain.AuditLog, buffer),
		log:   log,
	}
}

func (s *AuditService) Log(_ context.Context, entry *domain.AuditLog) {
	s.log.Info().
		Str("actor", entry.Actor).
		Str("action", string(entry.Action)).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID).
		Str("ip", entry.IPAddress).
		Msg("audit")

	if s.repo == nil {
		return
	}
	select {
	case s.queue <- entry:
	default:
		s.log.Warn().Str("action", string(entry.Action)).Msg("audit queue full, entry not persisted")
	}
}

// Run persists queued entries until ctx is done, then drains what is left.
func (s *AuditService) Run(ctx context.Context) error {
	for {
		select {
		case entry := <-s.queue:
			s.persist(ctx, entry)
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditDrainTimeout)
			defer cancel()
			for {
				select {
				case entry := <-s.queue:
					s.persist(drainCtx, entry)
				default:
					return nil
				}
			}
		}
	}
}

func (s *AuditService) persist(ctx context.Context, entry *domain.AuditLog) {
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
	}
}
