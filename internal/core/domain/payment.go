package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod enumerates the supported (mocked) payment providers.
type PaymentMethod string

const (
	PaymentMethodWalletA      PaymentMethod = "wallet-a"
	PaymentMethodWalletB      PaymentMethod = "wallet-b"
	PaymentMethodBankTransfer PaymentMethod = "bank-transfer"
)

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodWalletA, PaymentMethodWalletB, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// PaymentStatus is the settlement state reported by the provider.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PaymentTransaction is one payment attempt for an artifact.
type PaymentTransaction struct {
	ID                   uuid.UUID     `json:"id"`
	ArtifactID           uuid.UUID     `json:"artifact_id"`
	Amount               int64         `json:"amount"` // In centavos
	Method               PaymentMethod `json:"payment_method"`
	Status               PaymentStatus `json:"status"`
	TransactionReference string        `json:"transaction_reference"`
	FailureReason        string        `json:"failure_reason,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
}

// IsTerminal returns true once the provider has settled the payment.
func (p *PaymentTransaction) IsTerminal() bool {
	return p.Status == PaymentStatusSuccess || p.Status == PaymentStatusFailed
}

// IsConfirmed returns true if the payment settled successfully.
func (p *PaymentTransaction) IsConfirmed() bool {
	return p.Status == PaymentStatusSuccess
}

// PaymentCallback is the settlement notice delivered by the payment provider.
type PaymentCallback struct {
	TransactionReference string
	Status               PaymentStatus
	Amount               int64
	Method               PaymentMethod
	Reason               string
}
