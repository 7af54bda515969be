package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/aman-churiwal/secure-api/internal/circuitbreaker"
	"github.com/aman-churiwal/secure-api/internal/metrics"
	"github.com/sirupsen/logrus"
)

// FallbackStore serves every operation from the primary (distributed) store
// and retries a single failed operation against the in-process store.
// While it is degraded, limits are enforced per process, not globally.
type FallbackStore struct {
	primary  Store
	fallback Store
	breaker  *circuitbreaker.CircuitBreaker
	timeout  time.Duration
	log      logrus.FieldLogger
	degraded atomic.Bool
}

type FallbackOptions struct {
	// Per-call deadline applied to primary operations. Default: 200ms
	Timeout time.Duration

	// Breaker guarding the primary. Built from MaxFailures/OpenTimeout when nil.
	// The store subscribes to its transitions either way.
	Breaker     *circuitbreaker.CircuitBreaker
	MaxFailures int
	OpenTimeout time.Duration

	Logger logrus.FieldLogger
}

// primary may be nil, in which case the store runs in fallback mode permanently
func NewFallbackStore(primary, fallback Store, opts FallbackOptions) *FallbackStore {
	if opts.Timeout <= 0 {
		opts.Timeout = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	f := &FallbackStore{
		primary:  primary,
		fallback: fallback,
		timeout:  opts.Timeout,
		log:      opts.Logger.WithField("component", "store"),
	}

	f.breaker = opts.Breaker
	if f.breaker == nil {
		f.breaker = circuitbreaker.New(circuitbreaker.Config{
			MaxFailures: opts.MaxFailures,
			OpenTimeout: opts.OpenTimeout,
		})
	}
	f.breaker.Subscribe(f.onBreakerChange)

	if primary == nil {
		f.setDegraded(true, "no distributed store configured")
	}

	return f
}

// Reports whether operations are currently served by the in-process store
func (f *FallbackStore) Degraded() bool {
	return f.degraded.Load()
}

func (f *FallbackStore) Breaker() *circuitbreaker.CircuitBreaker {
	return f.breaker
}

func (f *FallbackStore) onBreakerChange(from, to circuitbreaker.State) {
	metrics.SetStoreBreakerState(to.Value())
	f.log.WithFields(logrus.Fields{
		"from": from.String(),
		"to":   to.String(),
	}).Info("Distributed store circuit breaker changed state")
}

func (f *FallbackStore) setDegraded(degraded bool, reason string) {
	if f.degraded.Swap(degraded) == degraded {
		return
	}
	metrics.SetStoreDegraded(degraded)

	if degraded {
		f.log.WithField("reason", reason).Warn("Rate limiting switched to per-process fallback store")
		return
	}
	f.log.Info("Rate limiting restored to distributed store")
}

func withFallback[T any](ctx context.Context, f *FallbackStore, op, key string, call func(context.Context, Store) (T, error)) (T, error) {
	if f.primary == nil {
		return call(ctx, f.fallback)
	}
	// A caller that has gone away says nothing about the primary's health
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	var out T
	var notFound bool
	err := f.breaker.Call(func() error {
		cctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		v, err := call(cctx, f.primary)
		if err != nil && ctx.Err() != nil {
			return circuitbreaker.Neutral(ctx.Err())
		}
		if errors.Is(err, ErrNotFound) {
			notFound = true
			return nil
		}
		if err != nil {
			return err
		}
		out = v
		return nil
	})

	if err == nil {
		f.setDegraded(false, "")
		if notFound {
			return out, ErrNotFound
		}
		return out, nil
	}
	if cerr := ctx.Err(); cerr != nil {
		var zero T
		return zero, cerr
	}

	metrics.RecordStoreFallback(op)
	f.setDegraded(true, err.Error())
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		f.log.WithFields(logrus.Fields{
			"operation": op,
			"key":       key,
			"error":     err.Error(),
		}).Warn("Distributed store operation failed, using in-process fallback")
	}

	return call(ctx, f.fallback)
}

func (f *FallbackStore) Incr(ctx context.Context, key string) (int64, error) {
	return withFallback(ctx, f, "incr", key, func(ctx context.Context, s Store) (int64, error) {
		return s.Incr(ctx, key)
	})
}

func (f *FallbackStore) ExpireIfUnset(ctx context.Context, key string, ttl time.Duration) error {
	_, err := withFallback(ctx, f, "expire", key, func(ctx context.Context, s Store) (struct{}, error) {
		return struct{}{}, s.ExpireIfUnset(ctx, key, ttl)
	})
	return err
}

func (f *FallbackStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return withFallback(ctx, f, "ttl", key, func(ctx context.Context, s Store) (time.Duration, error) {
		return s.TTL(ctx, key)
	})
}

func (f *FallbackStore) Exists(ctx context.Context, key string) (bool, error) {
	return withFallback(ctx, f, "exists", key, func(ctx context.Context, s Store) (bool, error) {
		return s.Exists(ctx, key)
	})
}

func (f *FallbackStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := withFallback(ctx, f, "set", key, func(ctx context.Context, s Store) (struct{}, error) {
		return struct{}{}, s.SetWithTTL(ctx, key, value, ttl)
	})
	return err
}

func (f *FallbackStore) Get(ctx context.Context, key string) (string, error) {
	return withFallback(ctx, f, "get", key, func(ctx context.Context, s Store) (string, error) {
		return s.Get(ctx, key)
	})
}

func (f *FallbackStore) Del(ctx context.Context, key string) error {
	_, err := withFallback(ctx, f, "del", key, func(ctx context.Context, s Store) (struct{}, error) {
		return struct{}{}, s.Del(ctx, key)
	})
	return err
}
