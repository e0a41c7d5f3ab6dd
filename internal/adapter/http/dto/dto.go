package dto

import "civic-document-service/internal/core/domain"

// ArtifactRequest is the request body for a new artifact request.
// Details are printed on the issued document, so they are stored verbatim;
// JSON rendering escapes markup on the way out.
type ArtifactRequest struct {
	Kind    string            `json:"kind" binding:"required,oneof=QRT_ID CERTIFICATE BLOTTER"`
	OwnerID string            `json:"owner_id" binding:"required,uuid"`
	Details map[string]string `json:"details,omitempty" binding:"max=20,dive,keys,safe_id,endkeys,max=500" sanitize:"trim"`
}

// PaymentInitRequest is the request body for starting a payment.
type PaymentInitRequest struct {
	Method string `json:"method" binding:"required,oneof=wallet-a wallet-b bank-transfer"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

// PaymentCallbackRequest is the settlement notice posted by the payment provider.
type PaymentCallbackRequest struct {
	TransactionReference string `json:"transaction_reference" binding:"required,max=64,safe_id"`
	Status               string `json:"status" binding:"required,oneof=success failed"`
	Amount               int64  `json:"amount" binding:"required,gt=0"`
	Method               string `json:"method" binding:"required,oneof=wallet-a wallet-b bank-transfer"`
	Reason               string `json:"reason,omitempty" binding:"max=255"`
}

// LoginRequest is the request body for staff login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,max=128" sanitize:"-"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// AdvanceRequest moves an artifact through staff-driven processing.
type AdvanceRequest struct {
	Status string `json:"status" binding:"required,oneof=PROCESSING READY"`
}

// FinalizeRequest carries the captain's signature as base64 or a data URL.
type FinalizeRequest struct {
	Signature string `json:"signature" binding:"required" sanitize:"trim"`
}

// ReasonRequest is used by reject, dismiss and reissue.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ResidentRequest is the request body for resident registration.
type ResidentRequest struct {
	FullName      string `json:"full_name" binding:"required,max=120" sanitize:"trim"`
	Address       string `json:"address" binding:"required,max=250" sanitize:"trim"`
	BirthDate     string `json:"birth_date" binding:"required,datetime=2006-01-02"`
	ContactNumber string `json:"contact_number,omitempty" binding:"omitempty,contact"`
}

// AnnouncementRequest is the request body for publishing an announcement.
type AnnouncementRequest struct {
	Title string `json:"title" binding:"required,max=150"`
	Body  string `json:"body" binding:"required,max=5000"`
}

// ReferenceURI binds a reference number path parameter.
type ReferenceURI struct {
	Reference string `uri:"ref" binding:"required,reference"`
}

// IDURI binds an artifact or resident id path parameter.
type IDURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// StatsQuery binds the dashboard reporting period.
type StatsQuery struct {
	Period string `form:"period,default=all" binding:"oneof=day week month all"`
}

// VerifyQuery binds the claimed digest of a verification query.
type VerifyQuery struct {
	Digest string `form:"digest" binding:"max=128"`
}

// VerifyResponse is the public answer to an authenticity query.
type VerifyResponse struct {
	Valid       bool                 `json:"valid"`
	Certificate *domain.PublicView   `json:"certificate,omitempty"`
	Message     string               `json:"message"`
	Reason      domain.VerdictReason `json:"reason"`
}

// NewVerifyResponse maps a verdict to its wire form.
func NewVerifyResponse(v domain.Verdict) VerifyResponse {
	return VerifyResponse{
		Valid:       v.Valid,
		Certificate: v.Artifact,
		Message:     v.Reason.Message(),
		Reason:      v.Reason,
	}
}

// RevokeResponse reports the outcome of a revocation.
type RevokeResponse struct {
	ReferenceNumber string `json:"reference_number"`
	Revoked         bool   `json:"revoked"`
}
