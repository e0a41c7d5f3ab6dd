package handler

import (
	"civic-document-service/internal/adapter/http/dto"
	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	reporting ports.ReportingService
}

func NewDashboardHandler(reporting ports.ReportingService) *DashboardHandler {
	return &DashboardHandler{reporting: reporting}
}

// GetStats handles GET /api/v1/staff/dashboard/stats?period=day|week|month|all.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	var q dto.StatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}
	stats, err := h.reporting.GetDashboardStats(c.Request.Context(), q.Period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
