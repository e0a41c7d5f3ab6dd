package handler

import (
	"time"

	"civic-document-service/internal/adapter/http/middleware"
	"civic-document-service/internal/adapter/metrics"
	"civic-document-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Lifecycle      ports.LifecycleService
	Verification   ports.VerificationService
	Directory      ports.DirectoryService
	StaffAuth      ports.StaffAuthService
	ReportingSvc   ports.ReportingService
	SigSvc         ports.SignatureService
	TokenSvc       ports.TokenService
	NonceStore     ports.NonceStore
	RateLimiter    ports.RateLimiter   // nil = rate limiting disabled
	Index          ports.DocumentIndex // nil = this instance does not serve the index
	AuditSvc       ports.AuditService  // nil = audit logging disabled
	ProviderSecret string              // empty = payment callbacks disabled
	IndexSecret    string              // empty = index writes disabled
	MaxDrift       time.Duration
	Metrics        *metrics.Collector  // nil = no request metrics
	Gatherer       prometheus.Gatherer // nil = no /metrics endpoint
	HealthCheckers []ports.HealthChecker
	OpenAPISpec    []byte // nil = no /swagger routes
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	registerSwagger(r, deps.OpenAPISpec)

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		return rules.For(deps.RateLimiter, group, deps.Logger)
	}

	// --- Public verification ---
	verifyHandler := NewVerifyHandler(deps.Verification)
	r.GET("/verify/:ref", rl("verify"), verifyHandler.Verify)

	v1 := r.Group("/api/v1")

	// --- Resident-facing routes (no auth) ---
	directoryHandler := NewDirectoryHandler(deps.Directory)
	artifactHandler := NewArtifactHandler(deps.Lifecycle)

	v1.POST("/residents", rl("residents"), directoryHandler.RegisterResident)
	v1.GET("/residents/:id", rl("requests"), directoryHandler.GetResident)
	v1.GET("/announcements", rl("verify"), directoryHandler.ListAnnouncements)

	artifacts := v1.Group("/artifacts")
	{
		artifacts.POST("", rl("requests"), artifactHandler.Request)
		artifacts.GET("/:id", rl("requests"), artifactHandler.Get)
		artifacts.POST("/:id/payments", rl("payments"), artifactHandler.InitiatePayment)
	}

	// --- Provider callbacks (HMAC-signed) ---
	if deps.ProviderSecret != "" {
		providerAuth := middleware.HMACAuth(middleware.HMACConfig{
			Scope:           "provider",
			Secret:          deps.ProviderSecret,
			SignatureHeader: middleware.HeaderProviderSignature,
			MaxDrift:        deps.MaxDrift,
		}, deps.SigSvc, deps.NonceStore, deps.Logger)
		paymentHandler := NewPaymentHandler(deps.Lifecycle)
		v1.POST("/payments/callback", rl("callbacks"), providerAuth, paymentHandler.Callback)
	}

	// --- Authoritative index (reads public, writes HMAC-signed) ---
	if deps.Index != nil {
		recordsHandler := NewRecordsHandler(deps.Index)
		records := v1.Group("/records")
		records.GET("/:ref", rl("records"), recordsHandler.Get)
		if deps.IndexSecret != "" {
			indexAuth := middleware.HMACAuth(middleware.HMACConfig{
				Scope:    "index",
				Secret:   deps.IndexSecret,
				MaxDrift: deps.MaxDrift,
			}, deps.SigSvc, deps.NonceStore, deps.Logger)
			records.PUT("/:ref", rl("records"), indexAuth, recordsHandler.Publish)
			records.POST("/:ref/revoke", rl("records"), indexAuth, recordsHandler.Revoke)
		}
	}

	// --- Staff routes (JWT) ---
	staffHandler := NewStaffHandler(deps.StaffAuth, deps.Lifecycle)
	dashboardHandler := NewDashboardHandler(deps.ReportingSvc)
	v1.POST("/staff/login", rl("staff_login"), staffHandler.Login)

	staff := v1.Group("/staff", middleware.JWTAuth(deps.TokenSvc, deps.Logger), rl("staff"))
	{
		staff.GET("/artifacts", staffHandler.ListArtifacts)
		staff.GET("/artifacts/:id", staffHandler.GetArtifact)
		staff.POST("/artifacts/:id/advance", staffHandler.Advance)
		staff.POST("/artifacts/:id/finalize", staffHandler.Finalize)
		staff.POST("/artifacts/:id/reject", staffHandler.Reject)
		staff.POST("/artifacts/:id/reissue", staffHandler.Reissue)
		staff.POST("/documents/:ref/revoke", staffHandler.Revoke)
		staff.GET("/payments", staffHandler.ListPayments)
		staff.GET("/verifications/:ref", verifyHandler.History)
		staff.GET("/residents", directoryHandler.ListResidents)
		staff.POST("/announcements", directoryHandler.PublishAnnouncement)
		staff.GET("/dashboard/stats", dashboardHandler.GetStats)
	}

	return r
}
