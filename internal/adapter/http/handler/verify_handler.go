package handler

import (
	"net/http"
	"strconv"

	"civic-document-service/internal/adapter/http/dto"
	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/apperror"
	"civic-document-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// VerifyHandler answers public authenticity queries.
type VerifyHandler struct {
	verifySvc ports.VerificationService
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(verifySvc ports.VerificationService) *VerifyHandler {
	return &VerifyHandler{verifySvc: verifySvc}
}

// Verify handles GET /verify/:ref?digest=<hex>.
// A definitive answer is 200; 404 means no source has the reference.
func (h *VerifyHandler) Verify(c *gin.Context) {
	var uri dto.ReferenceURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation("invalid reference number"))
		return
	}
	var q dto.VerifyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}

	verdict := h.verifySvc.Verify(c.Request.Context(), uri.Reference, q.Digest, c.ClientIP())

	status := http.StatusOK
	if verdict.Reason == domain.VerdictNotFound {
		status = http.StatusNotFound
	}
	c.JSON(status, dto.NewVerifyResponse(verdict))
}

// History handles GET /api/v1/staff/verifications/:ref.
func (h *VerifyHandler) History(c *gin.Context) {
	var uri dto.ReferenceURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation("invalid reference number"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.verifySvc.History(c.Request.Context(), uri.Reference, limit)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	response.OK(c, entries)
}
