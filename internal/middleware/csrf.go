package middleware

import (
	"context"
	"net/http"

	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	SessionHeader = "X-Session-ID"
	CSRFHeader    = "X-CSRF-Token"
)

type CSRFValidator interface {
	ValidateToken(ctx context.Context, sessionID, token string) bool
}

// RequireCSRF checks state-changing requests against the token stored for the session
func RequireCSRF(validator CSRFValidator, events EventRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		session := c.GetHeader(SessionHeader)
		token := c.GetHeader(CSRFHeader)

		if !validator.ValidateToken(c.Request.Context(), session, token) {
			record(events, NewSecurityEvent(c, models.EventCSRFMismatch))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Invalid CSRF token",
			})
			return
		}

		c.Next()
	}
}
