package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"civic-document-service/internal/core/domain"
	"civic-document-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	method       string
	route        string
	action       domain.AuditAction
	resourceType string
}

// auditRoutes maps matched gin routes to audit actions.
var auditRoutes = []auditRoute{
	{http.MethodPost, "/api/v1/residents", domain.AuditActionRegister, "resident"},
	{http.MethodPost, "/api/v1/artifacts", domain.AuditActionRequest, "artifact"},
	{http.MethodPost, "/api/v1/artifacts/:id/payments", domain.AuditActionPaymentInit, "payment"},
	{http.MethodPost, "/api/v1/payments/callback", domain.AuditActionPaymentCallback, "payment"},
	{http.MethodPost, "/api/v1/staff/login", domain.AuditActionLogin, "session"},
	{http.MethodPost, "/api/v1/staff/artifacts/:id/advance", domain.AuditActionTransition, "artifact"},
	{http.MethodPost, "/api/v1/staff/artifacts/:id/finalize", domain.AuditActionFinalize, "artifact"},
	{http.MethodPost, "/api/v1/staff/artifacts/:id/reject", domain.AuditActionReject, "artifact"},
	{http.MethodPost, "/api/v1/staff/artifacts/:id/reissue", domain.AuditActionReissue, "artifact"},
	{http.MethodPost, "/api/v1/staff/documents/:ref/revoke", domain.AuditActionRevoke, "document"},
	{http.MethodPost, "/api/v1/records/:ref/revoke", domain.AuditActionRevoke, "document"},
	{http.MethodPost, "/api/v1/staff/announcements", domain.AuditActionAnnounce, "announcement"},
}

// AuditLog creates an audit middleware that logs successful write operations.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		resourceID := c.Param("id")
		if resourceID == "" {
			resourceID = c.Param("ref")
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Actor:        c.GetString(CtxStaff),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	for _, r := range auditRoutes {
		if r.route == route && r.method == method {
			return r.action, r.resourceType
		}
	}
	return "", ""
}
