package handler

import (
	"encoding/hex"

	"civic-document-service/internal/adapter/http/dto"
	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/apperror"
	"civic-document-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// RecordsHandler serves the authoritative document index to other instances.
type RecordsHandler struct {
	index ports.DocumentIndex
}

// NewRecordsHandler creates a new RecordsHandler.
func NewRecordsHandler(index ports.DocumentIndex) *RecordsHandler {
	return &RecordsHandler{index: index}
}

// Get handles GET /api/v1/records/:ref.
func (h *RecordsHandler) Get(c *gin.Context) {
	var uri dto.ReferenceURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation("invalid reference number"))
		return
	}

	rec, err := h.index.Lookup(c.Request.Context(), uri.Reference)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if rec == nil {
		response.Error(c, apperror.ErrNotFound("record"))
		return
	}
	response.OK(c, rec)
}

// Publish handles PUT /api/v1/records/:ref (HMAC-signed).
func (h *RecordsHandler) Publish(c *gin.Context) {
	var uri dto.ReferenceURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation("invalid reference number"))
		return
	}
	var rec domain.RemoteRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		response.BindError(c, err)
		return
	}
	if rec.View.ReferenceNumber != uri.Reference {
		response.Error(c, apperror.Validation("reference number does not match path"))
		return
	}
	if rec.View.Status != domain.ArtifactStatusIssued {
		response.Error(c, apperror.Validation("only issued documents can be published"))
		return
	}
	if raw, err := hex.DecodeString(rec.SignatureDigest); err != nil || len(raw) != 32 {
		response.Error(c, apperror.Validation("signature_digest must be a hex SHA-256 digest"))
		return
	}
	rec.Revoked = false

	if err := h.index.Publish(c.Request.Context(), &rec); err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	response.OK(c, gin.H{"reference_number": uri.Reference})
}

// Revoke handles POST /api/v1/records/:ref/revoke (HMAC-signed).
func (h *RecordsHandler) Revoke(c *gin.Context) {
	var uri dto.ReferenceURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation("invalid reference number"))
		return
	}

	ok, err := h.index.Revoke(c.Request.Context(), uri.Reference)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if !ok {
		response.Error(c, apperror.ErrNotFound("record"))
		return
	}
	response.OK(c, dto.RevokeResponse{ReferenceNumber: uri.Reference, Revoked: true})
}
