package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"civic-document-service/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Username string
}

// DigestService binds signature content to an artifact.
type DigestService interface {
	// Digest returns the lowercase hex SHA-256 of content, or domain.NoDigest for empty content.
	Digest(content []byte) string
	// Verify recomputes the digest of content and compares it with expected.
	Verify(content []byte, expected string) bool
	// Equal compares two digests case-insensitively. An empty side never matches.
	Equal(a, b string) bool
	// DecodeSignature decodes base64 or a base64 data URL into raw bytes.
	DecodeSignature(encoded string) ([]byte, error)
}

// SequenceAllocator issues reference numbers.
type SequenceAllocator interface {
	Next(ctx context.Context, kind domain.ArtifactKind) (string, error)
}

// MetricsRecorder receives domain events for instrumentation.
type MetricsRecorder interface {
	ArtifactRequested(kind domain.ArtifactKind)
	ArtifactTransitioned(kind domain.ArtifactKind, to domain.ArtifactStatus)
	PaymentSettled(method domain.PaymentMethod, status domain.PaymentStatus)
	VerificationCompleted(reason domain.VerdictReason)
	RemoteLookupFailed()
	StoreWrite(collection string, err error)
	StoreCorrupt(collection string)
	DocumentsPublished(n int)
}

// --- Service Ports (Business Logic) ---

// ArtifactRequest holds validated input for a new artifact request.
type ArtifactRequest struct {
	Kind    domain.ArtifactKind
	OwnerID uuid.UUID
	Details map[string]string
}

// PaymentInit holds validated input for starting a payment.
type PaymentInit struct {
	ArtifactID uuid.UUID
	Method     domain.PaymentMethod
	Amount     int64
}

// ArtifactListParams holds filter + pagination for listing artifacts.
type ArtifactListParams struct {
	Kind     *domain.ArtifactKind
	Status   *domain.ArtifactStatus
	OwnerID  *uuid.UUID
	Page     int
	PageSize int
}

// LifecycleService drives artifacts through the issuance state machine.
type LifecycleService interface {
	Request(ctx context.Context, req ArtifactRequest) (*domain.Artifact, error)
	InitiatePayment(ctx context.Context, req PaymentInit) (*domain.PaymentTransaction, error)
	HandlePaymentCallback(ctx context.Context, cb domain.PaymentCallback) (*domain.Artifact, error)
	Advance(ctx context.Context, id uuid.UUID, target domain.ArtifactStatus) (*domain.Artifact, error)
	Finalize(ctx context.Context, id uuid.UUID, signature string) (*domain.Artifact, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*domain.Artifact, error)
	Reissue(ctx context.Context, id uuid.UUID, reason string) (*domain.Artifact, error)
	Revoke(ctx context.Context, reference string) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Artifact, error)
	GetByReference(ctx context.Context, reference string) (*domain.Artifact, error)
	List(ctx context.Context, params ArtifactListParams) ([]domain.Artifact, int64, error)
	ListPayments(ctx context.Context, artifactID *uuid.UUID) ([]domain.PaymentTransaction, error)
	PublishPending(ctx context.Context) (int, error)
}

// ArtifactFinder resolves artifacts held in local records.
type ArtifactFinder interface {
	GetByReference(ctx context.Context, reference string) (*domain.Artifact, error)
}

// VerificationService answers authenticity queries.
type VerificationService interface {
	Verify(ctx context.Context, reference, claimedDigest, verifier string) domain.Verdict
	History(ctx context.Context, reference string, limit int) ([]domain.VerificationLogEntry, error)
}

// ResidentRegistration holds validated input for registering a resident.
type ResidentRegistration struct {
	FullName      string
	Address       string
	BirthDate     string
	ContactNumber string
}

// ResidentLookup resolves residents by id.
type ResidentLookup interface {
	GetResident(ctx context.Context, id uuid.UUID) (*domain.Resident, error)
}

// DirectoryService manages residents and announcements.
type DirectoryService interface {
	ResidentLookup
	RegisterResident(ctx context.Context, req ResidentRegistration) (*domain.Resident, error)
	ListResidents(ctx context.Context) ([]domain.Resident, error)
	ListAnnouncements(ctx context.Context) ([]domain.Announcement, error)
	PublishAnnouncement(ctx context.Context, title, body string) (*domain.Announcement, error)
}

// StaffAuthService authenticates staff accounts.
type StaffAuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// DashboardStats holds aggregated statistics for the staff dashboard.
type DashboardStats struct {
	TotalArtifacts  int64                           `json:"total_artifacts"`
	ByKind          map[domain.ArtifactKind]int64   `json:"by_kind"`
	ByStatus        map[domain.ArtifactStatus]int64 `json:"by_status"`
	Issued          int64                           `json:"issued"`
	PendingPayment  int64                           `json:"pending_payment"`
	PaymentsSettled int64                           `json:"payments_settled"`
	PaymentsFailed  int64                           `json:"payments_failed"`
	TotalCollected  int64                           `json:"total_collected"`   // centavos
	CollectedByKind map[domain.ArtifactKind]int64   `json:"collected_by_kind"`
	ByPaymentMethod map[domain.PaymentMethod]int64  `json:"by_payment_method"`
}

// ReportingService defines dashboard/reporting business logic.
type ReportingService interface {
	GetDashboardStats(ctx context.Context, period string) (*DashboardStats, error)
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// StatusNotifier announces artifact status changes to an external subscriber.
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, artifact *domain.Artifact, from domain.ArtifactStatus)
}

// HealthChecker is a dependency probed by GET /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
