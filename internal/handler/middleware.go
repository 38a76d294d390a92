package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"tradesignal/internal/config"
)

// RequireBearer protects /api/ and the swagger UI with a static token.
// Probe and metrics endpoints stay open.
func RequireBearer(cfg config.AuthConfig) gin.HandlerFunc {
	want := []byte(strings.TrimSpace(cfg.Token))
	return func(c *gin.Context) {
		if cfg.Disabled {
			c.Next()
			return
		}
		p := c.Request.URL.Path
		if p == "/healthz" || p == "/readyz" || p == "/metrics" {
			c.Next()
			return
		}
		if !strings.HasPrefix(p, "/api/") && !strings.HasPrefix(p, "/swagger") {
			c.Next()
			return
		}
		auth := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		got := []byte(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}
		c.Next()
	}
}

// RateLimit rejects requests beyond the limiter with 429. A nil limiter
// lets everything through.
func RateLimit(l *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l != nil && !l.Allow() {
			Error(c, http.StatusTooManyRequests, "too many requests", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// NewTriggerLimiter returns nil when rps is zero, disabling the limit.
func NewTriggerLimiter(cfg config.ServerConfig) *rate.Limiter {
	if cfg.TriggerRPS <= 0 {
		return nil
	}
	burst := cfg.TriggerBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.TriggerRPS), burst)
}
