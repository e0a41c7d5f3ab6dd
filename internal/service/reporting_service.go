package service

import (
	"context"
	"time"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/apperror"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// reportingService implements ports.ReportingService on top of the lifecycle manager.
type reportingService struct {
	lifecycle ports.LifecycleService
	clock     func() time.Time
}

// NewReportingService creates a new reporting service.
func NewReportingService(lifecycle ports.LifecycleService) ports.ReportingService {
	return &reportingService{lifecycle: lifecycle, clock: time.Now}
}

// GetDashboardStats aggregates artifacts and payments created within period.
func (s *reportingService) GetDashboardStats(ctx context.Context, period string) (*ports.DashboardStats, error) {
	var since time.Time
	now := s.clock()

	switch period {
	case "day":
		since = now.AddDate(0, 0, -1)
	case "week":
		since = now.AddDate(0, 0, -7)
	case "month":
		since = now.AddDate(0, -1, 0)
	case "all", "":
		// No time filter
	default:
		return nil, apperror.Validation("invalid period: must be day, week, month, or all")
	}

	var (
		artifacts []domain.Artifact
		payments  []domain.PaymentTransaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		artifacts, err = s.allArtifacts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.lifecycle.ListPayments(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperror.InternalError(err)
	}

	stats := &ports.DashboardStats{
		ByKind:          make(map[domain.ArtifactKind]int64),
		ByStatus:        make(map[domain.ArtifactStatus]int64),
		CollectedByKind: make(map[domain.ArtifactKind]int64),
		ByPaymentMethod: make(map[domain.PaymentMethod]int64),
	}

	kindOf := make(map[uuid.UUID]domain.ArtifactKind, len(artifacts))
	for _, a := range artifacts {
		kindOf[a.ID] = a.Kind
		if a.CreatedAt.Before(since) {
			continue
		}
		stats.TotalArtifacts++
		stats.ByKind[a.Kind]++
		stats.ByStatus[a.Status]++
		switch a.Status {
		case domain.ArtifactStatusIssued:
			stats.Issued++
		case domain.ArtifactStatusAwaitingPayment:
			stats.PendingPayment++
		}
	}

	for _, p := range payments {
		if p.CreatedAt.Before(since) {
			continue
		}
		switch p.Status {
		case domain.PaymentStatusSuccess:
			stats.PaymentsSettled++
			stats.TotalCollected += p.Amount
			stats.CollectedByKind[kindOf[p.ArtifactID]] += p.Amount
			stats.ByPaymentMethod[p.Method] += p.Amount
		case domain.PaymentStatusFailed:
			stats.PaymentsFailed++
		}
	}

	return stats, nil
}

func (s *reportingService) allArtifacts(ctx context.Context) ([]domain.Artifact, error) {
	var out []domain.Artifact
	for page := 1; ; page++ {
		items, total, err := s.lifecycle.List(ctx, ports.ArtifactListParams{Page: page, PageSize: maxPageSize})
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) == 0 || int64(len(out)) >= total {
			return out, nil
		}
	}
}
