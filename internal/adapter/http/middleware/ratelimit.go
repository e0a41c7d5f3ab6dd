package middleware

import (
	"strconv"
	"time"

	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/apperror"
	"civic-document-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule allows Limit requests per caller in each Window.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// RateLimitRules maps an endpoint group to its rule.
type RateLimitRules map[string]RateLimitRule

// DefaultRateLimitRules are the per-group limits of the portal.
func DefaultRateLimitRules() RateLimitRules {
	return RateLimitRules{
		"verify":      {Limit: 60, Window: time.Minute},
		"requests":    {Limit: 20, Window: time.Minute},
		"residents":   {Limit: 10, Window: time.Hour},
		"payments":    {Limit: 30, Window: time.Minute},
		"callbacks":   {Limit: 300, Window: time.Minute},
		"staff_login": {Limit: 10, Window: time.Minute},
		"staff":       {Limit: 120, Window: time.Minute},
		"records":     {Limit: 600, Window: time.Minute},
	}
}

// For returns the middleware enforcing group's rule, or a pass-through when
// limiter is nil or the group has no rule.
func (r RateLimitRules) For(limiter ports.RateLimiter, group string, log zerolog.Logger) gin.HandlerFunc {
	rule, ok := r[group]
	if limiter == nil || !ok {
		return func(c *gin.Context) { c.Next() }
	}
	return RateLimiter(limiter, group, rule, log)
}

// RateLimiter enforces rule per caller within group. A limiter failure lets
// the request through.
func RateLimiter(limiter ports.RateLimiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.Allow(c.Request.Context(), callerKey(c)+":"+group, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limiter unavailable, request allowed")
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if result.Allowed {
			c.Next()
			return
		}
		h.Set("Retry-After", strconv.FormatInt(max(result.ResetAt-time.Now().Unix(), 1), 10))
		response.Error(c, apperror.ErrRateLimitExceeded())
		c.Abort()
	}
}

// callerKey is the staff username on authenticated routes, else the client IP.
func callerKey(c *gin.Context) string {
	if staff := c.GetString(CtxStaff); staff != "" {
		return "staff:" + staff
	}
	return c.ClientIP()
}
