package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/hookrelay/internal/accountctx"
)

// HeaderAccount identifies the calling account. Authentication itself is
// delegated to the gateway in front of this service; an empty or malformed
// header is rejected here.
const HeaderAccount = "X-Account-ID"

func (s *Server) AccountRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderAccount))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		accountID, err := snowflake.ParseString(raw)
		if err != nil || accountID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := accountctx.WithAccountID(c.Request.Context(), int64(accountID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// SimulateRateLimit throttles webhook simulation per account through the
// shared Redis bucket. Without Redis configured the limiter passes everything.
func (s *Server) SimulateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.simulateLimiter == nil || !s.simulateLimiter.Enabled() {
			c.Next()
			return
		}

		accountID, ok := accountctx.AccountIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		result, err := s.simulateLimiter.Allow(c.Request.Context(), accountID.String())
		if err != nil {
			// Redis being down must not take simulation down with it.
			c.Next()
			return
		}
		if !result.Allowed {
			if result.RetryAfter > 0 {
				c.Header("Retry-After", result.RetryAfter.String())
			}
			s.metrics.RecordRateLimitDenied(c.Request.Context(), "simulate", "rate_limited")
			AbortWithError(c, ErrTooManyRequests)
			return
		}

		s.metrics.RecordRateLimitAllowed(c.Request.Context(), "simulate")
		c.Next()
	}
}
