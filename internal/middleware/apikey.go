package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type APIKeyValidator interface {
	Validate(ctx context.Context, key string) (*models.APIKey, error)
	UpdateLastUsed(ctx context.Context, id uuid.UUID)
}

// RequireAPIKey rejects requests without a valid X-API-Key header
func RequireAPIKey(validator APIKeyValidator, events EventRecorder, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKeyHeader := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if apiKeyHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "API key required",
			})
			return
		}

		ctx := c.Request.Context()
		apiKey, err := validator.Validate(ctx, apiKeyHeader)
		if err != nil {
			if !errors.Is(err, service.ErrInvalidAPIKey) {
				log.WithError(err).Error("API key validation failed")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error": "API key validation unavailable",
				})
				return
			}

			record(events, NewSecurityEvent(c, models.EventInvalidAPIKey))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		c.Set(ContextAPIKey, apiKey)
		c.Set(ContextAPIKeyID, apiKey.ID.String())

		go validator.UpdateLastUsed(context.WithoutCancel(ctx), apiKey.ID)

		c.Next()
	}
}
