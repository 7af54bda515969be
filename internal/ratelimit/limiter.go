package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/aman-churiwal/secure-api/internal/metrics"
	"github.com/aman-churiwal/secure-api/internal/storage"
	"github.com/sirupsen/logrus"
)

var ErrUnknownPolicy = errors.New("unknown rate limit policy")

// Result is the outcome of one CheckRateLimit call
type Result struct {
	IsBlocked  bool      `json:"isBlocked"`
	Limit      int64     `json:"limit"`
	Remaining  int64     `json:"remaining"`
	ResetTime  time.Time `json:"resetTime"`
	RetryAfter int       `json:"retryAfter,omitempty"` // seconds, set only when blocked
	Message    string    `json:"message,omitempty"`
	StatusCode int       `json:"statusCode,omitempty"`
}

// Info is a read-only view of a counter
type Info struct {
	Current   int64     `json:"current"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
	IsBlocked bool      `json:"isBlocked"`
}

// Limiter is a fixed-window limiter over a Store. Each (policy, key) pair is
// either fresh, counting or blocked; the block record wins over the counter.
type Limiter struct {
	store    storage.Store
	policies map[string]Policy
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewLimiter(store storage.Store, policies map[string]Policy, log logrus.FieldLogger) *Limiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Limiter{
		store:    store,
		policies: policies,
		log:      log.WithField("component", "ratelimit"),
		now:      time.Now,
	}
}

func counterKey(policy, key string) string {
	return fmt.Sprintf("ratelimit:%s:%s", policy, key)
}

func blockKey(policy, key string) string {
	return fmt.Sprintf("ratelimit:block:%s:%s", policy, key)
}

func (l *Limiter) Policy(name string) (Policy, bool) {
	p, ok := l.policies[name]
	return p, ok
}

// Policies returns the configured policies sorted by name
func (l *Limiter) Policies() []Policy {
	out := make([]Policy, 0, len(l.policies))
	for _, p := range l.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (l *Limiter) policy(name string) (Policy, error) {
	p, ok := l.policies[name]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return p, nil
}

func retrySeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func (l *Limiter) blocked(p Policy, now time.Time, wait time.Duration) *Result {
	return &Result{
		IsBlocked:  true,
		Limit:      p.Max,
		Remaining:  0,
		ResetTime:  now.Add(wait),
		RetryAfter: retrySeconds(wait),
		Message:    p.Message,
		StatusCode: p.StatusCode,
	}
}

// CheckRateLimit counts one request for key under the named policy
func (l *Limiter) CheckRateLimit(ctx context.Context, key, policyName string) (*Result, error) {
	p, err := l.policy(policyName)
	if err != nil {
		return nil, err
	}

	ck := counterKey(p.Name, key)
	bk := blockKey(p.Name, key)

	if p.HasBlock() {
		blocked, err := l.store.Exists(ctx, bk)
		if err != nil {
			return nil, fmt.Errorf("failed to read block record: %w", err)
		}
		if blocked {
			metrics.RecordRateLimitDecision(p.Name, "already_blocked")
			return l.blocked(p, l.now(), p.BlockDuration), nil
		}
	}

	count, err := l.store.Incr(ctx, ck)
	if err != nil {
		return nil, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if count == 1 {
		if err := l.store.ExpireIfUnset(ctx, ck, p.Window); err != nil {
			return nil, fmt.Errorf("failed to start rate limit window: %w", err)
		}
	}

	ttl, err := l.windowTTL(ctx, ck, p)
	if err != nil {
		return nil, err
	}
	now := l.now()

	if count > p.Max {
		wait := ttl
		if p.HasBlock() {
			if err := l.store.SetWithTTL(ctx, bk, "1", p.BlockDuration); err != nil {
				return nil, fmt.Errorf("failed to write block record: %w", err)
			}
			wait = p.BlockDuration
		}

		l.log.WithFields(logrus.Fields{
			"policy": p.Name,
			"key":    key,
			"count":  count,
			"limit":  p.Max,
		}).Warn("Rate limit exceeded")
		metrics.RecordRateLimitDecision(p.Name, "blocked")

		return l.blocked(p, now, wait), nil
	}

	metrics.RecordRateLimitDecision(p.Name, "allowed")

	return &Result{
		IsBlocked: false,
		Limit:     p.Max,
		Remaining: max(0, p.Max-count),
		ResetTime: now.Add(ttl),
	}, nil
}

// Remaining window time for a live counter. A counter that lost its expiry
// (for example after a failed EXPIRE) is given the full window again so it
// cannot live forever.
func (l *Limiter) windowTTL(ctx context.Context, ck string, p Policy) (time.Duration, error) {
	ttl, err := l.store.TTL(ctx, ck)
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit window: %w", err)
	}
	if ttl != storage.NoTTL {
		return ttl, nil
	}

	if err := l.store.ExpireIfUnset(ctx, ck, p.Window); err != nil {
		return 0, fmt.Errorf("failed to start rate limit window: %w", err)
	}
	return p.Window, nil
}

// GetRateLimitInfo reads the state of key under the named policy without counting a request
func (l *Limiter) GetRateLimitInfo(ctx context.Context, key, policyName string) (*Info, error) {
	p, err := l.policy(policyName)
	if err != nil {
		return nil, err
	}

	ck := counterKey(p.Name, key)
	now := l.now()

	info := &Info{Limit: p.Max, Remaining: p.Max, ResetTime: now.Add(p.Window)}

	val, err := l.store.Get(ctx, ck)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to read rate limit counter: %w", err)
	default:
		current, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("rate limit counter %q is corrupt: %w", ck, err)
		}
		info.Current = current
		info.Remaining = max(0, p.Max-current)

		ttl, err := l.store.TTL(ctx, ck)
		if err != nil {
			return nil, fmt.Errorf("failed to read rate limit window: %w", err)
		}
		if ttl != storage.NoTTL {
			info.ResetTime = now.Add(ttl)
		}
	}

	if p.HasBlock() {
		blocked, err := l.store.Exists(ctx, blockKey(p.Name, key))
		if err != nil {
			return nil, fmt.Errorf("failed to read block record: %w", err)
		}
		if blocked {
			info.IsBlocked = true
			info.Remaining = 0
			if ttl, err := l.store.TTL(ctx, blockKey(p.Name, key)); err == nil && ttl != storage.NoTTL {
				info.ResetTime = now.Add(ttl)
			}
		}
	}

	if info.Current > p.Max {
		info.IsBlocked = true
	}

	return info, nil
}

// Reset clears both the counter and any block record for key
func (l *Limiter) Reset(ctx context.Context, key, policyName string) error {
	p, err := l.policy(policyName)
	if err != nil {
		return err
	}

	if err := l.store.Del(ctx, counterKey(p.Name, key)); err != nil {
		return fmt.Errorf("failed to delete rate limit counter: %w", err)
	}
	if err := l.store.Del(ctx, blockKey(p.Name, key)); err != nil {
		return fmt.Errorf("failed to delete block record: %w", err)
	}

	l.log.WithFields(logrus.Fields{"policy": p.Name, "key": key}).Info("Rate limit reset")

	return nil
}
