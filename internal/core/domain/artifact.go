package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ArtifactKind identifies the family of issuable document.
type ArtifactKind string

const (
	ArtifactKindQRTID       ArtifactKind = "QRT_ID"
	ArtifactKindCertificate ArtifactKind = "CERTIFICATE"
	ArtifactKindBlotter     ArtifactKind = "BLOTTER"
)

// ArtifactKinds lists every supported kind in a stable order.
var ArtifactKinds = []ArtifactKind{ArtifactKindQRTID, ArtifactKindCertificate, ArtifactKindBlotter}

// Valid reports whether k is a supported kind.
func (k ArtifactKind) Valid() bool {
	return slices.Contains(ArtifactKinds, k)
}

// CollectionKey is the logical storage key for artifacts of this kind.
func (k ArtifactKind) CollectionKey() string {
	switch k {
	case ArtifactKindQRTID:
		return CollectionQRTIDs
	case ArtifactKindCertificate:
		return CollectionCertificates
	case ArtifactKindBlotter:
		return CollectionBlotters
	}
	return ""
}

// ArtifactStatus is a lifecycle state.
type ArtifactStatus string

const (
	ArtifactStatusRequested        ArtifactStatus = "REQUESTED"
	ArtifactStatusAwaitingPayment  ArtifactStatus = "AWAITING_PAYMENT"
	ArtifactStatusPaymentConfirmed ArtifactStatus = "PAYMENT_CONFIRMED"
	ArtifactStatusProcessing       ArtifactStatus = "PROCESSING"
	ArtifactStatusReady            ArtifactStatus = "READY"
	ArtifactStatusIssued           ArtifactStatus = "ISSUED"
	ArtifactStatusRejected         ArtifactStatus = "REJECTED"
	ArtifactStatusDismissed        ArtifactStatus = "DISMISSED"
)

// IsTerminal returns true if no further transition may leave this state.
func (s ArtifactStatus) IsTerminal() bool {
	return s == ArtifactStatusIssued ||
		s == ArtifactStatusRejected ||
		s == ArtifactStatusDismissed
}

// KindPolicy captures the kind-specific subset of the lifecycle.
type KindPolicy struct {
	RequiresPayment bool
	// AutoProcess moves PAYMENT_CONFIRMED straight through PROCESSING to READY.
	AutoProcess bool
	RejectState ArtifactStatus
}

// PolicyFor returns the lifecycle policy of a kind.
func PolicyFor(kind ArtifactKind) KindPolicy {
	switch kind {
	case ArtifactKindCertificate:
		return KindPolicy{RequiresPayment: true, AutoProcess: true, RejectState: ArtifactStatusRejected}
	case ArtifactKindBlotter:
		return KindPolicy{RequiresPayment: false, RejectState: ArtifactStatusDismissed}
	default:
		return KindPolicy{RequiresPayment: true, RejectState: ArtifactStatusRejected}
	}
}

var forwardTransitions = map[ArtifactStatus]ArtifactStatus{
	ArtifactStatusAwaitingPayment:  ArtifactStatusPaymentConfirmed,
	ArtifactStatusPaymentConfirmed: ArtifactStatusProcessing,
	ArtifactStatusProcessing:       ArtifactStatusReady,
	ArtifactStatusReady:            ArtifactStatusIssued,
}

// Artifact is an issuable identity or civil document record.
type Artifact struct {
	ID                 uuid.UUID         `json:"id"`
	Kind               ArtifactKind      `json:"kind"`
	ReferenceNumber    string            `json:"reference_number"`
	Status             ArtifactStatus    `json:"status"`
	OwnerID            uuid.UUID         `json:"owner_id"`
	Details            map[string]string `json:"details,omitempty"`
	PaymentID          *uuid.UUID        `json:"payment_id,omitempty"`
	PaymentAttempts    int               `json:"payment_attempts"`
	LastPaymentFailure string            `json:"last_payment_failure,omitempty"`
	SignatureDigest    string            `json:"signature_digest,omitempty"`
	StatusReason       string            `json:"status_reason,omitempty"`
	ReissuedFrom       *uuid.UUID        `json:"reissued_from,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	IssuedAt           *time.Time        `json:"issued_at,omitempty"`
}

// Policy returns the lifecycle policy for the artifact's kind.
func (a *Artifact) Policy() KindPolicy {
	return PolicyFor(a.Kind)
}

// CanTransition reports whether moving to target is legal from the current state.
func (a *Artifact) CanTransition(target ArtifactStatus) bool {
	if a.Status.IsTerminal() {
		return false
	}
	policy := a.Policy()
	if target == ArtifactStatusRejected || target == ArtifactStatusDismissed {
		return target == policy.RejectState
	}
	if a.Status == ArtifactStatusRequested {
		if policy.RequiresPayment {
			return target == ArtifactStatusAwaitingPayment
		}
		return target == ArtifactStatusProcessing
	}
	next, ok := forwardTransitions[a.Status]
	return ok && next == target
}

// Clone returns a deep copy so snapshots never share mutable state.
func (a *Artifact) Clone() *Artifact {
	c := *a
	c.Details = maps.Clone(a.Details)
	if a.PaymentID != nil {
		id := *a.PaymentID
		c.PaymentID = &id
	}
	if a.ReissuedFrom != nil {
		id := *a.ReissuedFrom
		c.ReissuedFrom = &id
	}
	if a.IssuedAt != nil {
		t := *a.IssuedAt
		c.IssuedAt = &t
	}
	return &c
}

// PublicView is what a third-party verifier is allowed to see.
type PublicView struct {
	ReferenceNumber string         `json:"reference_number"`
	Kind            ArtifactKind   `json:"kind"`
	Status          ArtifactStatus `json:"status"`
	HolderName      string         `json:"holder_name,omitempty"`
	DocumentType    string         `json:"document_type,omitempty"`
	IssuedAt        *time.Time     `json:"issued_at,omitempty"`
}

// Detail keys surfaced in the public view.
const (
	DetailFullName     = "full_name"
	DetailDocumentType = "document_type"
)

// PublicView projects the artifact to its verifier-facing fields.
func (a *Artifact) PublicView() PublicView {
	v := PublicView{
		ReferenceNumber: a.ReferenceNumber,
		Kind:            a.Kind,
		Status:          a.Status,
		HolderName:      a.Details[DetailFullName],
		DocumentType:    a.Details[DetailDocumentType],
	}
	if a.IssuedAt != nil {
		t := *a.IssuedAt
		v.IssuedAt = &t
	}
	return v
}
