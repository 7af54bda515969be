package ratelimit

import (
	"fmt"
	"time"

	"github.com/aman-churiwal/secure-api/internal/config"
)

// PoliciesFromConfig merges configured overrides into the default table.
// Unknown names define new policies and must carry a window and a max.
func PoliciesFromConfig(overrides map[string]config.RateLimitPolicyConfig) (map[string]Policy, error) {
	policies := DefaultPolicies()

	for name, o := range overrides {
		p, known := policies[name]
		if !known {
			if o.WindowMs <= 0 || o.Max <= 0 {
				return nil, fmt.Errorf("rate limit policy %q needs window_ms and max", name)
			}
			p = Policy{Name: name, Message: "Too many requests, please try again later.", StatusCode: 429}
		}

		if o.WindowMs > 0 {
			p.Window = time.Duration(o.WindowMs) * time.Millisecond
		}
		if o.Max > 0 {
			p.Max = o.Max
		}
		if o.BlockDurationMs > 0 {
			p.BlockDuration = time.Duration(o.BlockDurationMs) * time.Millisecond
		}
		if o.Message != "" {
			p.Message = o.Message
		}
		if o.StatusCode != 0 {
			p.StatusCode = o.StatusCode
		}

		policies[name] = p
	}

	return policies, nil
}
