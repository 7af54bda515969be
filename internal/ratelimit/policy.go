package ratelimit

import (
	"net/http"
	"time"
)

const (
	PolicyLogin  = "login"
	PolicyAPI    = "api"
	PolicyAIChat = "aiChat"
	PolicyAdmin  = "admin"
	PolicyPublic = "public"
)

// Policy is the immutable configuration of one named limit
type Policy struct {
	Name          string
	Window        time.Duration
	Max           int64
	BlockDuration time.Duration // zero means no block record is written
	Message       string
	StatusCode    int
}

func (p Policy) HasBlock() bool {
	return p.BlockDuration > 0
}

// DefaultPolicies returns a fresh copy of the built-in policy table
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		PolicyLogin: {
			Name:          PolicyLogin,
			Window:        15 * time.Minute,
			Max:           5,
			BlockDuration: 30 * time.Minute,
			Message:       "Too many login attempts, please try again later.",
			StatusCode:    http.StatusTooManyRequests,
		},
		PolicyAPI: {
			Name:       PolicyAPI,
			Window:     time.Minute,
			Max:        100,
			Message:    "Too many API requests, please slow down.",
			StatusCode: http.StatusTooManyRequests,
		},
		PolicyAIChat: {
			Name:          PolicyAIChat,
			Window:        time.Minute,
			Max:           10,
			BlockDuration: 5 * time.Minute,
			Message:       "Too many chat messages, please wait before sending more.",
			StatusCode:    http.StatusTooManyRequests,
		},
		PolicyAdmin: {
			Name:          PolicyAdmin,
			Window:        time.Minute,
			Max:           30,
			BlockDuration: 15 * time.Minute,
			Message:       "Too many admin requests.",
			StatusCode:    http.StatusTooManyRequests,
		},
		PolicyPublic: {
			Name:       PolicyPublic,
			Window:     time.Minute,
			Max:        200,
			Message:    "Too many requests, please try again later.",
			StatusCode: http.StatusTooManyRequests,
		},
	}
}
