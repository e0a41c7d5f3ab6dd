package middleware

import (
	"bytes"
	"io"
	"strconv"
	"time"

	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/apperror"
	"civic-document-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	HeaderSignature         = "X-Signature"
	HeaderProviderSignature = "X-Provider-Signature"
	HeaderTimestamp         = "X-Timestamp"
	HeaderNonce             = "X-Nonce"

	defaultTimestampDrift = 60 * time.Second
)

// HMACConfig describes one shared-secret caller: the payment provider or a
// peer writing to the document index.
type HMACConfig struct {
	// Scope namespaces nonces so callers cannot collide.
	Scope           string
	Secret          string
	SignatureHeader string
	MaxDrift        time.Duration
	Now             func() time.Time
}

// HMACAuth admits a request only when its timestamp is within MaxDrift, its
// signature covers the canonical string and its nonce is fresh, checked in
// that order. A failing nonce store does not block signed requests.
func HMACAuth(cfg HMACConfig, sigSvc ports.SignatureService, nonces ports.NonceStore, log zerolog.Logger) gin.HandlerFunc {
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = HeaderSignature
	}
	if cfg.MaxDrift <= 0 {
		cfg.MaxDrift = defaultTimestampDrift
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	nonceTTL := 2 * cfg.MaxDrift

	return func(c *gin.Context) {
		signature := c.GetHeader(cfg.SignatureHeader)
		nonce := c.GetHeader(HeaderNonce)
		rawTS := c.GetHeader(HeaderTimestamp)
		if signature == "" || nonce == "" || rawTS == "" {
			abort(c, apperror.ErrInvalidSignature())
			return
		}

		ts, err := strconv.ParseInt(rawTS, 10, 64)
		if err != nil || absDuration(cfg.Now().Sub(time.Unix(ts, 0))) > cfg.MaxDrift {
			abort(c, apperror.ErrTimestampExpired())
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.BindError(c, err)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		canonical := sigSvc.BuildCanonicalString(c.Request.Method, c.Request.URL.Path, ts, nonce, string(body))
		if !sigSvc.Verify(cfg.Secret, canonical, signature) {
			log.Warn().Str("scope", cfg.Scope).Str("client_ip", c.ClientIP()).Msg("rejected request with invalid signature")
			abort(c, apperror.ErrInvalidSignature())
			return
		}

		fresh, err := nonces.CheckAndSet(c.Request.Context(), cfg.Scope, nonce, nonceTTL)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("scope", cfg.Scope).Msg("nonce store unavailable, request allowed")
		case !fresh:
			abort(c, apperror.ErrNonceUsed())
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
