package middleware

import (
	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/gin-gonic/gin"
)

// Keys set on the gin context by this package
const (
	ContextRequestID = "request_id"
	ContextUserID    = "user_id"
	ContextRole      = "role"
	ContextAPIKey    = "api_key"
	ContextAPIKeyID  = "api_key_id"
)

// EventRecorder receives security events raised while handling a request
type EventRecorder interface {
	Record(event models.SecurityEvent)
}

// NewSecurityEvent fills the request fields of an event from the gin context
func NewSecurityEvent(c *gin.Context, eventType string) models.SecurityEvent {
	return models.SecurityEvent{
		Type:      eventType,
		IPAddress: c.ClientIP(),
		Method:    c.Request.Method,
		Path:      c.Request.URL.Path,
		RequestID: c.GetString(ContextRequestID),
		UserID:    c.GetString(ContextUserID),
	}
}

func record(events EventRecorder, event models.SecurityEvent) {
	if events != nil {
		events.Record(event)
	}
}
