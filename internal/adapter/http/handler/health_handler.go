package handler

import (
	"net/http"
	"sync"
	"time"

	"civic-document-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type dependencyHealth struct {
	Healthy   bool   `json:"healthy"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Dependencies are pinged concurrently and
// any failure turns the answer into 503 "degraded".
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			mu      sync.Mutex
			results = make(map[string]dependencyHealth, len(checkers))
			g       errgroup.Group
		)
		for _, checker := range checkers {
			g.Go(func() error {
				start := time.Now()
				err := checker.Ping(c.Request.Context())
				h := dependencyHealth{Healthy: err == nil, LatencyMS: time.Since(start).Milliseconds()}
				if err != nil {
					h.Error = err.Error()
				}
				mu.Lock()
				results[checker.Name()] = h
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		status, code := "healthy", http.StatusOK
		for _, h := range results {
			if !h.Healthy {
				status, code = "degraded", http.StatusServiceUnavailable
				break
			}
		}
		c.JSON(code, gin.H{"status": status, "dependencies": results})
	}
}
