package handler

import (
	"strconv"

	"civic-document-service/internal/adapter/http/dto"
	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/apperror"
	"civic-document-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var knownStatuses = map[domain.ArtifactStatus]bool{
	domain.ArtifactStatusRequested:        true,
	domain.ArtifactStatusAwaitingPayment:  true,
	domain.ArtifactStatusPaymentConfirmed: true,
	domain.ArtifactStatusProcessing:       true,
	domain.ArtifactStatusReady:            true,
	domain.ArtifactStatusIssued:           true,
	domain.ArtifactStatusRejected:         true,
	domain.ArtifactStatusDismissed:        true,
}

// StaffHandler handles staff login and the processing queue.
type StaffHandler struct {
	authSvc   ports.StaffAuthService
	lifecycle ports.LifecycleService
}

// NewStaffHandler creates a new StaffHandler.
func NewStaffHandler(authSvc ports.StaffAuthService, lifecycle ports.LifecycleService) *StaffHandler {
	return &StaffHandler{authSvc: authSvc, lifecycle: lifecycle}
}

// Login handles POST /api/v1/staff/login.
func (h *StaffHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	dto.SanitizeStruct(&req)

	token, expiry, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{
		Token:  token,
		Expiry: expiry.Unix(),
	})
}

// ListArtifacts handles GET /api/v1/staff/artifacts.
func (h *StaffHandler) ListArtifacts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.ArtifactListParams{Page: page, PageSize: pageSize}

	if k := c.Query("kind"); k != "" {
		kind := domain.ArtifactKind(k)
		if !kind.Valid() {
			response.Error(c, apperror.Validation("invalid kind"))
			return
		}
		params.Kind = &kind
	}
	if s := c.Query("status"); s != "" {
		status := domain.ArtifactStatus(s)
		if !knownStatuses[status] {
			response.Error(c, apperror.Validation("invalid status"))
			return
		}
		params.Status = &status
	}
	if o := c.Query("owner_id"); o != "" {
		ownerID, err := uuid.Parse(o)
		if err != nil {
			response.Error(c, apperror.Validation("invalid owner_id"))
			return
		}
		params.OwnerID = &ownerID
	}

	items, total, err := h.lifecycle.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, items, total, page, pageSize)
}

// GetArtifact handles GET /api/v1/staff/artifacts/:id.
func (h *StaffHandler) GetArtifact(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	a, err := h.lifecycle.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, a)
}

// ListPayments handles GET /api/v1/staff/payments.
func (h *StaffHandler) ListPayments(c *gin.Context) {
	var artifactID *uuid.UUID
	if s := c.Query("artifact_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.Error(c, apperror.Validation("invalid artifact_id"))
			return
		}
		artifactID = &id
	}

	payments, err := h.lifecycle.ListPayments(c.Request.Context(), artifactID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payments)
}

// Advance handles POST /api/v1/staff/artifacts/:id/advance.
func (h *StaffHandler) Advance(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	var req dto.AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	a, err := h.lifecycle.Advance(c.Request.Context(), id, domain.ArtifactStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, a)
}

// Finalize handles POST /api/v1/staff/artifacts/:id/finalize.
func (h *StaffHandler) Finalize(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	var req dto.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	a, err := h.lifecycle.Finalize(c.Request.Context(), id, req.Signature)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, a)
}

// Reject handles POST /api/v1/staff/artifacts/:id/reject.
// Blotter reports end up DISMISSED, everything else REJECTED.
func (h *StaffHandler) Reject(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	dto.SanitizeStruct(&req)

	a, err := h.lifecycle.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, a)
}

// Reissue handles POST /api/v1/staff/artifacts/:id/reissue.
func (h *StaffHandler) Reissue(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	dto.SanitizeStruct(&req)

	a, err := h.lifecycle.Reissue(c.Request.Context(), id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, a)
}

// Revoke handles POST /api/v1/staff/documents/:ref/revoke.
func (h *StaffHandler) Revoke(c *gin.Context) {
	var uri dto.ReferenceURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation("invalid reference number"))
		return
	}

	if err := h.lifecycle.Revoke(c.Request.Context(), uri.Reference); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.RevokeResponse{ReferenceNumber: uri.Reference, Revoked: true})
}
