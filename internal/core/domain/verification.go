package domain

import (
	"time"

	"github.com/google/uuid"
)

// NoDigest is returned in place of a digest when there is no content to bind.
const NoDigest = ""

// VerdictReason explains a verification outcome.
type VerdictReason string

const (
	VerdictMatchConfirmedRemote VerdictReason = "MATCH_CONFIRMED_REMOTE"
	VerdictMatchConfirmedLocal  VerdictReason = "MATCH_CONFIRMED_LOCAL"
	VerdictDigestMismatch       VerdictReason = "DIGEST_MISMATCH"
	VerdictRevoked              VerdictReason = "REVOKED"
	VerdictNotFound             VerdictReason = "NOT_FOUND"
)

// Message is the human-readable text for a reason.
func (r VerdictReason) Message() string {
	switch r {
	case VerdictMatchConfirmedRemote:
		return "Document is authentic"
	case VerdictMatchConfirmedLocal:
		return "Document is authentic (confirmed from local records)"
	case VerdictDigestMismatch:
		return "Signature digest does not match the issued document"
	case VerdictRevoked:
		return "Document has been revoked"
	default:
		return "No document found for this reference number"
	}
}

// Verdict is the unified answer to an authenticity query.
type Verdict struct {
	Valid    bool          `json:"valid"`
	Reason   VerdictReason `json:"reason"`
	Artifact *PublicView   `json:"artifact,omitempty"`
}

// RemoteRecord is what the authoritative source holds for an issued artifact.
type RemoteRecord struct {
	View            PublicView `json:"view"`
	SignatureDigest string     `json:"signature_digest"`
	Revoked         bool       `json:"revoked"`
	PublishedAt     time.Time  `json:"published_at"`
}

// NewRemoteRecord builds the publishable record of an issued artifact.
func NewRemoteRecord(a *Artifact, publishedAt time.Time) RemoteRecord {
	return RemoteRecord{
		View:            a.PublicView(),
		SignatureDigest: a.SignatureDigest,
		PublishedAt:     publishedAt,
	}
}

// VerificationLogEntry is one append-only audit row of a verification attempt.
type VerificationLogEntry struct {
	ID              uuid.UUID     `json:"id"`
	ReferenceNumber string        `json:"reference_number"`
	Verifier        string        `json:"verifier"`
	Valid           bool          `json:"valid"`
	Reason          VerdictReason `json:"reason"`
	CreatedAt       time.Time     `json:"created_at"`
}
