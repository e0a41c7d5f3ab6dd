package handler

import (
	"civic-document-service/internal/adapter/http/dto"
	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler receives settlement callbacks from the payment provider.
type PaymentHandler struct {
	lifecycle ports.LifecycleService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(lifecycle ports.LifecycleService) *PaymentHandler {
	return &PaymentHandler{lifecycle: lifecycle}
}

// Callback handles POST /api/v1/payments/callback (provider-signed).
func (h *PaymentHandler) Callback(c *gin.Context) {
	var req dto.PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	dto.SanitizeStruct(&req)

	a, err := h.lifecycle.HandlePaymentCallback(c.Request.Context(), domain.PaymentCallback{
		TransactionReference: req.TransactionReference,
		Status:               domain.PaymentStatus(req.Status),
		Amount:               req.Amount,
		Method:               domain.PaymentMethod(req.Method),
		Reason:               req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, a)
}
