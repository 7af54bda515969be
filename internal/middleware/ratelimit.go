package middleware

import (
	"net/http"
	"strconv"

	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RateLimitKey identifies the caller: API key first, then user, then client IP
func RateLimitKey(c *gin.Context) string {
	if id := c.GetString(ContextAPIKeyID); id != "" {
		return "key:" + id
	}
	if id := c.GetString(ContextUserID); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

// RateLimit enforces the named policy for every request through it
func RateLimit(limiter ratelimit.Checker, policy string, events EventRecorder, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if enforce(c, limiter, policy, events, log) {
			c.Next()
		}
	}
}

// RateLimitForAPIKey uses the policy attached to the API key in context,
// or defaultPolicy when the key has none the limiter knows. Must run after RequireAPIKey.
func RateLimitForAPIKey(limiter ratelimit.Checker, defaultPolicy string, events EventRecorder, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		policy := defaultPolicy
		if value, ok := c.Get(ContextAPIKey); ok {
			if apiKey, ok := value.(*models.APIKey); ok && apiKey.Policy != "" {
				if _, known := limiter.Policy(apiKey.Policy); known {
					policy = apiKey.Policy
				}
			}
		}

		if enforce(c, limiter, policy, events, log) {
			c.Next()
		}
	}
}

// Reports whether the request may continue. Aborts the request otherwise.
func enforce(c *gin.Context, limiter ratelimit.Checker, policy string, events EventRecorder, log logrus.FieldLogger) bool {
	result, err := limiter.CheckRateLimit(c.Request.Context(), RateLimitKey(c), policy)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"policy":     policy,
			"request_id": c.GetString(ContextRequestID),
		}).Error("Rate limit check failed")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "Rate limit check failed",
		})
		return false
	}

	c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
	c.Header("X-RateLimit-Policy", policy)

	if !result.IsBlocked {
		return true
	}

	event := NewSecurityEvent(c, models.EventRateLimited)
	event.Policy = policy
	record(events, event)

	c.Header("Retry-After", strconv.Itoa(result.RetryAfter))
	c.AbortWithStatusJSON(result.StatusCode, gin.H{
		"error":       result.Message,
		"retry_after": result.RetryAfter,
	})
	return false
}
