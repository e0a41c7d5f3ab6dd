package service

import (
	"context"
	"strings"
	"time"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultRemoteTimeout = 3 * time.Second

// VerificationGateway answers authenticity queries. The authoritative index is
// asked first; local issued artifacts are consulted only when it has no record
// or cannot be reached.
type VerificationGateway struct {
	remote  ports.RemoteSource
	local   ports.ArtifactFinder
	digest  ports.DigestService
	logs    ports.VerificationLogRepository
	metrics ports.MetricsRecorder
	timeout time.Duration
	clock   func() time.Time
	log     zerolog.Logger
}

// NewVerificationGateway creates a new VerificationGateway.
func NewVerificationGateway(
	remote ports.RemoteSource,
	local ports.ArtifactFinder,
	digest ports.DigestService,
	logs ports.VerificationLogRepository,
	metrics ports.MetricsRecorder,
	timeout time.Duration,
	log zerolog.Logger,
) *VerificationGateway {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &VerificationGateway{
		remote:  remote,
		local:   local,
		digest:  digest,
		logs:    logs,
		metrics: metrics,
		timeout: timeout,
		clock:   time.Now,
		log:     log,
	}
}

// Verify resolves a reference number and claimed digest to a verdict. It never fails:
// remote errors fall back to local records and log errors are only reported.
func (g *VerificationGateway) Verify(ctx context.Context, reference, claimedDigest, verifier string) domain.Verdict {
	reference = strings.TrimSpace(reference)
	verdict := g.resolve(ctx, reference, claimedDigest)

	g.metrics.VerificationCompleted(verdict.Reason)
	g.append(ctx, reference, verifier, verdict)

	g.log.Info().
		Str("reference", reference).
		Str("verifier", verifier).
		Bool("valid", verdict.Valid).
		Str("reason", string(verdict.Reason)).
		Msg("verification completed")

	return verdict
}

func (g *VerificationGateway) resolve(ctx context.Context, reference, claimedDigest string) domain.Verdict {
	if reference == "" {
		return domain.Verdict{Reason: domain.VerdictNotFound}
	}

	if rec := g.lookupRemote(ctx, reference); rec != nil {
		view := rec.View
		if rec.Revoked {
			return domain.Verdict{Reason: domain.VerdictRevoked, Artifact: &view}
		}
		if g.digest.Equal(rec.SignatureDigest, claimedDigest) {
			return domain.Verdict{Valid: true, Reason: domain.VerdictMatchConfirmedRemote, Artifact: &view}
		}
		return domain.Verdict{Reason: domain.VerdictDigestMismatch}
	}

	a, err := g.local.GetByReference(ctx, reference)
	if err != nil || a == nil || a.Status != domain.ArtifactStatusIssued {
		return domain.Verdict{Reason: domain.VerdictNotFound}
	}
	if g.digest.Equal(a.SignatureDigest, claimedDigest) {
		view := a.PublicView()
		return domain.Verdict{Valid: true, Reason: domain.VerdictMatchConfirmedLocal, Artifact: &view}
	}
	return domain.Verdict{Reason: domain.VerdictDigestMismatch}
}

// lookupRemote returns nil when the index has no record, fails, or times out.
func (g *VerificationGateway) lookupRemote(ctx context.Context, reference string) *domain.RemoteRecord {
	if g.remote == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	rec, err := g.remote.Lookup(rctx, reference)
	if err != nil {
		g.metrics.RemoteLookupFailed()
		g.log.Warn().Err(err).Str("reference", reference).Msg("remote lookup failed, using local records")
		return nil
	}
	return rec
}

func (g *VerificationGateway) append(ctx context.Context, reference, verifier string, v domain.Verdict) {
	if g.logs == nil {
		return
	}
	entry := &domain.VerificationLogEntry{
		ID:              uuid.New(),
		ReferenceNumber: reference,
		Verifier:        verifier,
		Valid:           v.Valid,
		Reason:          v.Reason,
		CreatedAt:       g.clock().UTC(),
	}
	if err := g.logs.Append(context.WithoutCancel(ctx), entry); err != nil {
		g.log.Error().Err(err).Str("reference", reference).Msg("failed to append verification log")
	}
}

// History returns the newest verification attempts for a reference number.
func (g *VerificationGateway) History(ctx context.Context, reference string, limit int) ([]domain.VerificationLogEntry, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	return g.logs.ListByReference(ctx, reference, limit)
}
