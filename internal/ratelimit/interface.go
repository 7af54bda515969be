package ratelimit

import (
	"context"
)

// Checker is what the HTTP layer needs from a limiter
type Checker interface {
	CheckRateLimit(ctx context.Context, key, policy string) (*Result, error)

	GetRateLimitInfo(ctx context.Context, key, policy string) (*Info, error)

	Reset(ctx context.Context, key, policy string) error

	Policy(name string) (Policy, bool)

	Policies() []Policy
}

var _ Checker = (*Limiter)(nil)
