package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRequest         AuditAction = "REQUEST"
	AuditActionPaymentInit     AuditAction = "PAYMENT_INIT"
	AuditActionPaymentCallback AuditAction = "PAYMENT_CALLBACK"
	AuditActionTransition      AuditAction = "TRANSITION"
	AuditActionFinalize        AuditAction = "FINALIZE"
	AuditActionReject          AuditAction = "REJECT"
	AuditActionReissue         AuditAction = "REISSUE"
	AuditActionRevoke          AuditAction = "REVOKE"
	AuditActionRegister        AuditAction = "REGISTER"
	AuditActionAnnounce        AuditAction = "ANNOUNCE"
	AuditActionLogin           AuditAction = "LOGIN"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Actor        string      `json:"actor,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
