package models

import (
	"time"
)

// Kinds of security events the recorder persists
const (
	EventRateLimited    = "rate_limited"
	EventMaliciousInput = "malicious_input"
	EventInvalidToken   = "invalid_token"
	EventCSRFMismatch   = "csrf_mismatch"
	EventInvalidAPIKey  = "invalid_api_key"
	EventLoginFailed    = "login_failed"
)

// Represents a logged security-relevant request outcome
type SecurityEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Type      string    `gorm:"index;not null" json:"type"`
	Policy    string    `json:"policy,omitempty"`
	RiskLevel string    `json:"risk_level,omitempty"`
	Patterns  string    `json:"patterns,omitempty"` // comma separated signature ids
	IPAddress string    `gorm:"index" json:"ip_address"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	RequestID string    `json:"request_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
}

func (SecurityEvent) TableName() string {
	return "security_events"
}
