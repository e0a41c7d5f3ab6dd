package service

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teris-io/shortid"
	"go.uber.org/ratelimit"
)

const (
	defaultPublishTimeout = 3 * time.Second
	defaultPageSize       = 20
	maxPageSize           = 100
)

// LifecycleDeps holds the collaborators of a LifecycleManager.
type LifecycleDeps struct {
	Allocator      ports.SequenceAllocator
	Digest         ports.DigestService
	Residents      ports.ResidentLookup
	Index          ports.DocumentIndex
	Notifier       ports.StatusNotifier
	Metrics        ports.MetricsRecorder
	Artifacts      map[domain.ArtifactKind]*RecordStore[domain.Artifact]
	Payments       *RecordStore[domain.PaymentTransaction]
	Limiter        ratelimit.Limiter // paces PublishPending; nil = unlimited
	PublishTimeout time.Duration
	Clock          func() time.Time
	Log            zerolog.Logger
}

// NewArtifactStores creates one record store per artifact kind.
func NewArtifactStores(
	kv ports.KVStore,
	opts RecordStoreOptions,
	metrics ports.MetricsRecorder,
	log zerolog.Logger,
) map[domain.ArtifactKind]*RecordStore[domain.Artifact] {
	stores := make(map[domain.ArtifactKind]*RecordStore[domain.Artifact], len(domain.ArtifactKinds))
	for _, kind := range domain.ArtifactKinds {
		stores[kind] = NewRecordStore[domain.Artifact](kv, kind.CollectionKey(), opts, metrics, log)
	}
	return stores
}

// LifecycleManager implements ports.LifecycleService.
//
// It is the only writer of artifacts and payments. Transitions on one artifact
// are serialized by a per-artifact mutex; m.mu only guards the in-memory
// collections and is held for the short commit step. Callers always receive
// copies.
type LifecycleManager struct {
	allocator      ports.SequenceAllocator
	digest         ports.DigestService
	residents      ports.ResidentLookup
	index          ports.DocumentIndex
	notifier       ports.StatusNotifier
	metrics        ports.MetricsRecorder
	stores         map[domain.ArtifactKind]*RecordStore[domain.Artifact]
	payStore       *RecordStore[domain.PaymentTransaction]
	limiter        ratelimit.Limiter
	publishTimeout time.Duration
	clock          func() time.Time
	log            zerolog.Logger

	locks sync.Map // uuid.UUID -> *sync.Mutex

	mu            sync.RWMutex
	artifacts     map[uuid.UUID]*domain.Artifact
	order         map[domain.ArtifactKind][]uuid.UUID
	byRef         map[string]uuid.UUID
	payments      map[uuid.UUID]*domain.PaymentTransaction
	paymentOrder  []uuid.UUID
	paymentsByRef map[string]uuid.UUID
	unpublished   map[uuid.UUID]struct{}
}

// NewLifecycleManager loads all artifact and payment collections and returns a ready manager.
// Every issued artifact is queued for publishing; the index keeps the first record it sees.
func NewLifecycleManager(ctx context.Context, deps LifecycleDeps) (*LifecycleManager, error) {
	for _, kind := range domain.ArtifactKinds {
		if deps.Artifacts[kind] == nil {
			return nil, fmt.Errorf("missing record store for %s", kind)
		}
	}
	if deps.Payments == nil {
		return nil, fmt.Errorf("missing payment record store")
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewUnlimited()
	}
	if deps.PublishTimeout <= 0 {
		deps.PublishTimeout = defaultPublishTimeout
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	m := &LifecycleManager{
		allocator:      deps.Allocator,
		digest:         deps.Digest,
		residents:      deps.Residents,
		index:          deps.Index,
		notifier:       deps.Notifier,
		metrics:        deps.Metrics,
		stores:         deps.Artifacts,
		payStore:       deps.Payments,
		limiter:        deps.Limiter,
		publishTimeout: deps.PublishTimeout,
		clock:          deps.Clock,
		log:            deps.Log,
		artifacts:      make(map[uuid.UUID]*domain.Artifact),
		order:          make(map[domain.ArtifactKind][]uuid.UUID),
		byRef:          make(map[string]uuid.UUID),
		payments:       make(map[uuid.UUID]*domain.PaymentTransaction),
		paymentsByRef:  make(map[string]uuid.UUID),
		unpublished:    make(map[uuid.UUID]struct{}),
	}

	for _, kind := range domain.ArtifactKinds {
		items, err := m.stores[kind].Load(ctx)
		if err != nil {
			return nil, err
		}
		for i := range items {
			a := items[i]
			if _, dup := m.artifacts[a.ID]; dup {
				m.log.Warn().Str("artifact_id", a.ID.String()).Msg("skipping duplicate artifact id")
				continue
			}
			if _, dup := m.byRef[a.ReferenceNumber]; dup {
				m.log.Warn().Str("reference", a.ReferenceNumber).Msg("skipping duplicate reference number")
				continue
			}
			a.Kind = kind
			m.artifacts[a.ID] = &a
			m.order[kind] = append(m.order[kind], a.ID)
			m.byRef[a.ReferenceNumber] = a.ID
			if a.Status == domain.ArtifactStatusIssued {
				m.unpublished[a.ID] = struct{}{}
			}
		}
	}

	payments, err := m.payStore.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range payments {
		p := payments[i]
		if _, dup := m.payments[p.ID]; dup {
			continue
		}
		m.payments[p.ID] = &p
		m.paymentOrder = append(m.paymentOrder, p.ID)
		m.paymentsByRef[p.TransactionReference] = p.ID
	}

	m.log.Info().
		Int("artifacts", len(m.artifacts)).
		Int("payments", len(m.payments)).
		Int("unpublished", len(m.unpublished)).
		Msg("lifecycle state loaded")

	return m, nil
}

// Request creates an artifact, allocates its reference number and applies the
// automatic first step of its kind (awaiting payment, or processing for free kinds).
func (m *LifecycleManager) Request(ctx context.Context, req ports.ArtifactRequest) (*domain.Artifact, error) {
	if !req.Kind.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unsupported artifact kind %q", req.Kind))
	}
	return m.create(ctx, req.Kind, req.OwnerID, req.Details, nil, "")
}

func (m *LifecycleManager) create(
	ctx context.Context,
	kind domain.ArtifactKind,
	ownerID uuid.UUID,
	details map[string]string,
	reissuedFrom *uuid.UUID,
	reason string,
) (*domain.Artifact, error) {
	resident, err := m.residents.GetResident(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	ref, err := m.allocator.Next(ctx, kind)
	if err != nil {
		return nil, err
	}

	now := m.now()
	details = maps.Clone(details)
	if details == nil {
		details = make(map[string]string)
	}
	if details[domain.DetailFullName] == "" {
		details[domain.DetailFullName] = resident.FullName
	}

	a := &domain.Artifact{
		ID:              uuid.New(),
		Kind:            kind,
		ReferenceNumber: ref,
		Status:          domain.ArtifactStatusRequested,
		OwnerID:         ownerID,
		Details:         details,
		ReissuedFrom:    reissuedFrom,
		StatusReason:    reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	first := domain.ArtifactStatusProcessing
	if a.Policy().RequiresPayment {
		first = domain.ArtifactStatusAwaitingPayment
	}
	if err := m.transition(a, first, now); err != nil {
		return nil, err
	}

	if err := m.commit(a); err != nil {
		return nil, err
	}

	m.metrics.ArtifactRequested(kind)
	m.metrics.ArtifactTransitioned(kind, a.Status)
	m.notify(ctx, a, domain.ArtifactStatusRequested)

	m.log.Info().
		Str("artifact_id", a.ID.String()).
		Str("reference", ref).
		Str("kind", string(kind)).
		Str("status", string(a.Status)).
		Msg("artifact requested")

	return a.Clone(), nil
}

// InitiatePayment opens a pending payment for an artifact awaiting payment.
// A still-pending earlier payment for the same artifact is marked failed.
func (m *LifecycleManager) InitiatePayment(ctx context.Context, req ports.PaymentInit) (*domain.PaymentTransaction, error) {
	if !req.Method.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unsupported payment method %q", req.Method))
	}
	if req.Amount <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}
	code, err := shortid.Generate()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate payment reference: %w", err))
	}

	unlock := m.lockArtifact(req.ArtifactID)
	defer unlock()

	current := m.lookup(req.ArtifactID)
	if current == nil {
		return nil, apperror.ErrNotFound("artifact")
	}
	if current.Status == domain.ArtifactStatusIssued {
		return nil, apperror.ErrArtifactImmutable()
	}
	if current.Status != domain.ArtifactStatusAwaitingPayment {
		return nil, apperror.ErrInvalidState(string(current.Status), string(domain.ArtifactStatusPaymentConfirmed))
	}

	now := m.now()
	if current.PaymentID != nil {
		if prev := m.lookupPayment(*current.PaymentID); prev != nil && !prev.IsTerminal() {
			prev.Status = domain.PaymentStatusFailed
			prev.FailureReason = "superseded by a new payment"
			prev.CompletedAt = &now
			if err := m.commitPayment(prev); err != nil {
				return nil, err
			}
		}
	}

	p := &domain.PaymentTransaction{
		ID:                   uuid.New(),
		ArtifactID:           current.ID,
		Amount:               req.Amount,
		Method:               req.Method,
		Status:               domain.PaymentStatusPending,
		TransactionReference: "PAY-" + code,
		CreatedAt:            now,
	}
	if err := m.commitPayment(p); err != nil {
		return nil, err
	}

	next := current.Clone()
	next.PaymentID = &p.ID
	next.UpdatedAt = now
	if err := m.commit(next); err != nil {
		return nil, err
	}

	m.log.Info().
		Str("artifact_id", current.ID.String()).
		Str("transaction_reference", p.TransactionReference).
		Int64("amount", p.Amount).
		Str("method", string(p.Method)).
		Msg("payment initiated")

	out := *p
	return &out, nil
}

// HandlePaymentCallback applies a provider settlement notice.
// A failed payment leaves the artifact awaiting payment with the failure recorded.
// Redelivery of an already applied notice is a no-op.
func (m *LifecycleManager) HandlePaymentCallback(ctx context.Context, cb domain.PaymentCallback) (*domain.Artifact, error) {
	if cb.Status != domain.PaymentStatusSuccess && cb.Status != domain.PaymentStatusFailed {
		return nil, apperror.Validation("status must be success or failed")
	}

	m.mu.RLock()
	paymentID, ok := m.paymentsByRef[cb.TransactionReference]
	var artifactID uuid.UUID
	if ok {
		artifactID = m.payments[paymentID].ArtifactID
	}
	m.mu.RUnlock()
	if !ok {
		return nil, apperror.ErrNotFound("payment")
	}

	unlock := m.lockArtifact(artifactID)
	defer unlock()

	payment := m.lookupPayment(paymentID)
	current := m.lookup(artifactID)
	if current == nil {
		return nil, apperror.ErrNotFound("artifact")
	}

	if payment.IsTerminal() {
		if payment.Status == cb.Status {
			return current, nil
		}
		return nil, apperror.New(apperror.CodeInvalidState, "Payment has already been settled", 409)
	}
	if cb.Amount != payment.Amount {
		return nil, apperror.Validation("amount does not match the pending payment")
	}
	if cb.Method != payment.Method {
		return nil, apperror.Validation("payment method does not match the pending payment")
	}

	now := m.now()
	payment.Status = cb.Status
	payment.CompletedAt = &now
	if cb.Status == domain.PaymentStatusFailed {
		payment.FailureReason = cb.Reason
		if payment.FailureReason == "" {
			payment.FailureReason = "payment failed"
		}
	}
	if err := m.commitPayment(payment); err != nil {
		return nil, err
	}
	m.metrics.PaymentSettled(payment.Method, payment.Status)

	if current.PaymentID == nil || *current.PaymentID != payment.ID {
		m.log.Warn().
			Str("transaction_reference", cb.TransactionReference).
			Str("artifact_id", artifactID.String()).
			Msg("settled payment is no longer linked to its artifact")
		return current, nil
	}

	from := current.Status
	next := current.Clone()
	next.PaymentAttempts++

	switch cb.Status {
	case domain.PaymentStatusFailed:
		next.LastPaymentFailure = payment.FailureReason
		next.UpdatedAt = now
	case domain.PaymentStatusSuccess:
		if err := m.transition(next, domain.ArtifactStatusPaymentConfirmed, now); err != nil {
			m.log.Warn().Err(err).
				Str("artifact_id", artifactID.String()).
				Msg("payment settled for an artifact that can no longer accept it")
			return nil, err
		}
		next.LastPaymentFailure = ""
		if next.Policy().AutoProcess {
			if err := m.transition(next, domain.ArtifactStatusProcessing, now); err != nil {
				return nil, err
			}
			if err := m.transition(next, domain.ArtifactStatusReady, now); err != nil {
				return nil, err
			}
		}
	}

	if err := m.commit(next); err != nil {
		return nil, err
	}
	m.afterTransition(ctx, next, from)

	return next.Clone(), nil
}

// Advance performs a staff-driven step (to PROCESSING or READY).
func (m *LifecycleManager) Advance(ctx context.Context, id uuid.UUID, target domain.ArtifactStatus) (*domain.Artifact, error) {
	return m.mutate(ctx, id, func(a *domain.Artifact, now time.Time) error {
		if a.Status == domain.ArtifactStatusIssued {
			return apperror.ErrArtifactImmutable()
		}
		if err := m.requirePayment(a, target); err != nil {
			return err
		}
		if target != domain.ArtifactStatusProcessing && target != domain.ArtifactStatusReady {
			return apperror.ErrInvalidState(string(a.Status), string(target))
		}
		return m.transition(a, target, now)
	})
}

// Finalize moves a READY artifact to ISSUED. The digest of the decoded
// signature, issuedAt and the status are set in one commit.
func (m *LifecycleManager) Finalize(ctx context.Context, id uuid.UUID, signature string) (*domain.Artifact, error) {
	issued, err := m.mutate(ctx, id, func(a *domain.Artifact, now time.Time) error {
		if a.Status == domain.ArtifactStatusIssued {
			return apperror.ErrArtifactImmutable()
		}
		if err := m.requirePayment(a, domain.ArtifactStatusIssued); err != nil {
			return err
		}
		if a.Status != domain.ArtifactStatusReady {
			return apperror.ErrInvalidState(string(a.Status), string(domain.ArtifactStatusIssued))
		}

		content, err := m.digest.DecodeSignature(signature)
		if err != nil {
			return err
		}
		digest := m.digest.Digest(content)
		if digest == domain.NoDigest {
			return apperror.ErrInvalidSignatureContent(fmt.Errorf("signature is empty"))
		}

		if err := m.transition(a, domain.ArtifactStatusIssued, now); err != nil {
			return err
		}
		a.SignatureDigest = digest
		a.IssuedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.unpublished[issued.ID] = struct{}{}
	m.mu.Unlock()

	if err := m.publish(ctx, issued); err != nil {
		m.log.Warn().Err(err).
			Str("reference", issued.ReferenceNumber).
			Msg("publish deferred to background job")
	}
	return issued, nil
}

// Reject closes a non-issued artifact in its kind's reject state (REJECTED or DISMISSED).
func (m *LifecycleManager) Reject(ctx context.Context, id uuid.UUID, reason string) (*domain.Artifact, error) {
	return m.mutate(ctx, id, func(a *domain.Artifact, now time.Time) error {
		if a.Status == domain.ArtifactStatusIssued {
			return apperror.ErrArtifactImmutable()
		}
		if err := m.transition(a, a.Policy().RejectState, now); err != nil {
			return err
		}
		a.StatusReason = reason

		if a.PaymentID != nil {
			if p := m.lookupPayment(*a.PaymentID); p != nil && !p.IsTerminal() {
				p.Status = domain.PaymentStatusFailed
				p.FailureReason = "artifact closed before payment settled"
				p.CompletedAt = &now
				return m.commitPayment(p)
			}
		}
		return nil
	})
}

// Reissue mints a new artifact (new id, new reference number) from an issued one.
// The original is left untouched.
func (m *LifecycleManager) Reissue(ctx context.Context, id uuid.UUID, reason string) (*domain.Artifact, error) {
	source := m.lookup(id)
	if source == nil {
		return nil, apperror.ErrNotFound("artifact")
	}
	if source.Status != domain.ArtifactStatusIssued {
		return nil, apperror.New(apperror.CodeInvalidState, "Only issued artifacts can be reissued", 409)
	}
	a, err := m.create(ctx, source.Kind, source.OwnerID, source.Details, &source.ID, reason)
	if err != nil {
		return nil, err
	}
	m.log.Info().
		Str("from", source.ReferenceNumber).
		Str("to", a.ReferenceNumber).
		Msg("artifact reissued")
	return a, nil
}

// Revoke marks an issued artifact as revoked in the authoritative index.
// The local artifact itself stays ISSUED.
func (m *LifecycleManager) Revoke(ctx context.Context, reference string) error {
	a, err := m.GetByReference(ctx, reference)
	if err != nil {
		return err
	}
	if a.Status != domain.ArtifactStatusIssued {
		return apperror.New(apperror.CodeInvalidState, "Only issued artifacts can be revoked", 409)
	}

	m.mu.RLock()
	_, pending := m.unpublished[a.ID]
	m.mu.RUnlock()
	if pending {
		if err := m.publish(ctx, a); err != nil {
			return apperror.InternalError(fmt.Errorf("publish before revoke: %w", err))
		}
	}

	found, err := m.index.Revoke(ctx, reference)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("revoke %s: %w", reference, err))
	}
	if !found {
		return apperror.ErrNotFound("published document")
	}

	m.log.Info().Str("reference", reference).Msg("document revoked")
	return nil
}

// Get returns a copy of the artifact.
func (m *LifecycleManager) Get(_ context.Context, id uuid.UUID) (*domain.Artifact, error) {
	a := m.lookup(id)
	if a == nil {
		return nil, apperror.ErrNotFound("artifact")
	}
	return a, nil
}

// GetByReference returns a copy of the artifact with the given reference number.
func (m *LifecycleManager) GetByReference(_ context.Context, reference string) (*domain.Artifact, error) {
	m.mu.RLock()
	id, ok := m.byRef[reference]
	m.mu.RUnlock()
	if !ok {
		return nil, apperror.ErrNotFound("artifact")
	}
	return m.Get(context.Background(), id)
}

// List returns matching artifacts, newest first.
func (m *LifecycleManager) List(_ context.Context, params ports.ArtifactListParams) ([]domain.Artifact, int64, error) {
	page, size := params.Page, params.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	m.mu.RLock()
	var matched []*domain.Artifact
	for _, kind := range domain.ArtifactKinds {
		if params.Kind != nil && *params.Kind != kind {
			continue
		}
		for _, id := range m.order[kind] {
			a := m.artifacts[id]
			if params.Status != nil && a.Status != *params.Status {
				continue
			}
			if params.OwnerID != nil && a.OwnerID != *params.OwnerID {
				continue
			}
			matched = append(matched, a)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * size
	if start >= len(matched) {
		return []domain.Artifact{}, total, nil
	}
	end := min(start+size, len(matched))

	out := make([]domain.Artifact, 0, end-start)
	for _, a := range matched[start:end] {
		out = append(out, *a.Clone())
	}
	return out, total, nil
}

// ListPayments returns payments in creation order, optionally for one artifact.
func (m *LifecycleManager) ListPayments(_ context.Context, artifactID *uuid.UUID) ([]domain.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.PaymentTransaction, 0)
	for _, id := range m.paymentOrder {
		p := m.payments[id]
		if artifactID != nil && p.ArtifactID != *artifactID {
			continue
		}
		out = append(out, clonePayment(p))
	}
	return out, nil
}

// PublishPending pushes every issued artifact not yet acknowledged by the
// index, paced by the limiter. Returns how many were published.
func (m *LifecycleManager) PublishPending(ctx context.Context) (int, error) {
	m.mu.RLock()
	ids := make([]uuid.UUID, 0, len(m.unpublished))
	for id := range m.unpublished {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	published, failed := 0, 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		m.limiter.Take()

		a := m.lookup(id)
		if a == nil {
			continue
		}
		if err := m.publish(ctx, a); err != nil {
			failed++
			continue
		}
		published++
	}

	if failed > 0 {
		return published, fmt.Errorf("%d documents still unpublished", failed)
	}
	return published, nil
}

// Flush forces pending writes of every collection owned by the manager.
func (m *LifecycleManager) Flush(ctx context.Context) error {
	var firstErr error
	for _, kind := range domain.ArtifactKinds {
		if err := m.stores[kind].Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.payStore.Flush(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// --- internals ---

// mutate runs fn on a private copy of the artifact while holding its lock,
// then commits the copy. Nothing is visible to readers if fn fails.
func (m *LifecycleManager) mutate(ctx context.Context, id uuid.UUID, fn func(a *domain.Artifact, now time.Time) error) (*domain.Artifact, error) {
	unlock := m.lockArtifact(id)
	defer unlock()

	current := m.lookup(id)
	if current == nil {
		return nil, apperror.ErrNotFound("artifact")
	}
	from := current.Status

	next := current.Clone()
	if err := fn(next, m.now()); err != nil {
		return nil, err
	}
	if err := m.commit(next); err != nil {
		return nil, err
	}
	m.afterTransition(ctx, next, from)

	return next.Clone(), nil
}

func (m *LifecycleManager) transition(a *domain.Artifact, to domain.ArtifactStatus, now time.Time) error {
	if a.Status == domain.ArtifactStatusIssued {
		return apperror.ErrArtifactImmutable()
	}
	if !a.CanTransition(to) {
		return apperror.ErrInvalidState(string(a.Status), string(to))
	}
	a.Status = to
	a.UpdatedAt = now
	return nil
}

// requirePayment enforces the payment gate for any target beyond AWAITING_PAYMENT.
func (m *LifecycleManager) requirePayment(a *domain.Artifact, target domain.ArtifactStatus) error {
	if !a.Policy().RequiresPayment {
		return nil
	}
	switch target {
	case domain.ArtifactStatusPaymentConfirmed,
		domain.ArtifactStatusProcessing,
		domain.ArtifactStatusReady,
		domain.ArtifactStatusIssued:
	default:
		return nil
	}
	if a.PaymentID != nil {
		if p := m.lookupPayment(*a.PaymentID); p != nil && p.IsConfirmed() {
			return nil
		}
	}
	return apperror.ErrPaymentNotConfirmed()
}

func (m *LifecycleManager) afterTransition(ctx context.Context, a *domain.Artifact, from domain.ArtifactStatus) {
	if a.Status == from {
		return
	}
	m.metrics.ArtifactTransitioned(a.Kind, a.Status)
	m.notify(ctx, a, from)
	m.log.Info().
		Str("artifact_id", a.ID.String()).
		Str("reference", a.ReferenceNumber).
		Str("from", string(from)).
		Str("to", string(a.Status)).
		Msg("artifact transitioned")
}

func (m *LifecycleManager) notify(ctx context.Context, a *domain.Artifact, from domain.ArtifactStatus) {
	if m.notifier != nil {
		m.notifier.NotifyStatusChange(ctx, a.Clone(), from)
	}
}

func (m *LifecycleManager) publish(ctx context.Context, a *domain.Artifact) error {
	rec := domain.NewRemoteRecord(a, m.now())

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.publishTimeout)
	defer cancel()

	if err := m.index.Publish(pctx, &rec); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.unpublished, a.ID)
	m.mu.Unlock()

	m.metrics.DocumentsPublished(1)
	return nil
}

// commit installs a as the current version and schedules a save of its collection.
func (m *LifecycleManager) commit(a *domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, existed := m.artifacts[a.ID]
	m.artifacts[a.ID] = a
	if !existed {
		m.order[a.Kind] = append(m.order[a.Kind], a.ID)
		m.byRef[a.ReferenceNumber] = a.ID
	}

	if err := m.stores[a.Kind].Save(m.snapshotLocked(a.Kind)); err != nil {
		if existed {
			m.artifacts[a.ID] = prev
		} else {
			delete(m.artifacts, a.ID)
			delete(m.byRef, a.ReferenceNumber)
			ids := m.order[a.Kind]
			m.order[a.Kind] = ids[:len(ids)-1]
		}
		return apperror.InternalError(err)
	}
	return nil
}

func (m *LifecycleManager) commitPayment(p *domain.PaymentTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, existed := m.payments[p.ID]
	m.payments[p.ID] = p
	if !existed {
		m.paymentOrder = append(m.paymentOrder, p.ID)
		m.paymentsByRef[p.TransactionReference] = p.ID
	}

	snapshot := make([]domain.PaymentTransaction, 0, len(m.paymentOrder))
	for _, id := range m.paymentOrder {
		snapshot = append(snapshot, *m.payments[id])
	}
	if err := m.payStore.Save(snapshot); err != nil {
		if existed {
			m.payments[p.ID] = prev
		} else {
			delete(m.payments, p.ID)
			delete(m.paymentsByRef, p.TransactionReference)
			m.paymentOrder = m.paymentOrder[:len(m.paymentOrder)-1]
		}
		return apperror.InternalError(err)
	}
	return nil
}

func (m *LifecycleManager) snapshotLocked(kind domain.ArtifactKind) []domain.Artifact {
	ids := m.order[kind]
	out := make([]domain.Artifact, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.artifacts[id])
	}
	return out
}

func (m *LifecycleManager) lookup(id uuid.UUID) *domain.Artifact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.artifacts[id]
	if !ok {
		return nil
	}
	return a.Clone()
}

func (m *LifecycleManager) lookupPayment(id uuid.UUID) *domain.PaymentTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil
	}
	c := clonePayment(p)
	return &c
}

func (m *LifecycleManager) lockArtifact(id uuid.UUID) func() {
	v, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (m *LifecycleManager) now() time.Time {
	return m.clock().UTC()
}

func clonePayment(p *domain.PaymentTransaction) domain.PaymentTransaction {
	c := *p
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return c
}
