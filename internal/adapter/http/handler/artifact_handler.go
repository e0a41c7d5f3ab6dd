package handler

import (
	"civic-document-service/internal/adapter/http/dto"
	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/apperror"
	"civic-document-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ArtifactHandler handles resident-facing artifact endpoints.
type ArtifactHandler struct {
	lifecycle ports.LifecycleService
}

// NewArtifactHandler creates a new ArtifactHandler.
func NewArtifactHandler(lifecycle ports.LifecycleService) *ArtifactHandler {
	return &ArtifactHandler{lifecycle: lifecycle}
}

// Request handles POST /api/v1/artifacts.
func (h *ArtifactHandler) Request(c *gin.Context) {
	var req dto.ArtifactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	dto.SanitizeStruct(&req)

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid owner_id"))
		return
	}

	a, err := h.lifecycle.Request(c.Request.Context(), ports.ArtifactRequest{
		Kind:    domain.ArtifactKind(req.Kind),
		OwnerID: ownerID,
		Details: req.Details,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, a)
}

// Get handles GET /api/v1/artifacts/:id.
func (h *ArtifactHandler) Get(c *gin.Context) {
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

// InitiatePayment handles POST /api/v1/artifacts/:id/payments.
func (h *ArtifactHandler) InitiatePayment(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	var req dto.PaymentInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	p, err := h.lifecycle.InitiatePayment(c.Request.Context(), ports.PaymentInit{
		ArtifactID: id,
		Method:     domain.PaymentMethod(req.Method),
		Amount:     req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// bindID parses the :id path parameter, writing a 400 on failure.
func bindID(c *gin.Context) (uuid.UUID, bool) {
	var uri dto.IDURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation("invalid id"))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uri.ID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid id"))
		return uuid.Nil, false
	}
	return id, true
}
