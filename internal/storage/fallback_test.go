package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aman-churiwal/secure-api/internal/circuitbreaker"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackendDown = errors.New("connection refused")

// Wraps a MemoryStore and fails every call while down is set
type flakyStore struct {
	*MemoryStore
	down  atomic.Bool
	calls atomic.Int64
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: NewMemoryStore()}
}

func (s *flakyStore) check() error {
	s.calls.Add(1)
	if s.down.Load() {
		return errBackendDown
	}
	return nil
}

func (s *flakyStore) Incr(ctx context.Context, key string) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.MemoryStore.Incr(ctx, key)
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.MemoryStore.SetWithTTL(ctx, key, value, ttl)
}

// Holds every Incr until the caller's context is done
type stallingStore struct {
	*MemoryStore
}

func (s stallingStore) Incr(ctx context.Context, key string) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func newTestFallback(t *testing.T, primary Store, maxFailures int) (*FallbackStore, *MemoryStore, *test.Hook) {
	t.Helper()

	logger, hook := test.NewNullLogger()
	local := NewMemoryStore()
	store := NewFallbackStore(primary, local, FallbackOptions{
		Timeout:     50 * time.Millisecond,
		MaxFailures: maxFailures,
		OpenTimeout: time.Minute,
		Logger:      logger,
	})

	return store, local, hook
}

func TestFallbackStore_UsesPrimaryWhenHealthy(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	store, local, _ := newTestFallback(t, primary, 3)

	n, err := store.Incr(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.False(t, store.Degraded())
	assert.Equal(t, 0, local.Len())
	assert.Equal(t, 1, primary.MemoryStore.Len())
}

func TestFallbackStore_FallsBackOnFailureAndLogs(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	primary.down.Store(true)
	store, local, hook := newTestFallback(t, primary, 10)

	n, err := store.Incr(ctx, "k")
	require.NoError(t, err, "primary failures are never surfaced")
	assert.Equal(t, int64(1), n)

	n, err = store.Incr(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.True(t, store.Degraded())
	assert.Equal(t, 1, local.Len())

	var sawTransition, sawFailure bool
	for _, entry := range hook.AllEntries() {
		if entry.Level != logrus.WarnLevel {
			continue
		}
		switch entry.Message {
		case "Rate limiting switched to per-process fallback store":
			sawTransition = true
		case "Distributed store operation failed, using in-process fallback":
			sawFailure = true
			assert.Equal(t, "incr", entry.Data["operation"])
		}
	}
	assert.True(t, sawTransition)
	assert.True(t, sawFailure)
}

func TestFallbackStore_RecoversWhenPrimaryReturns(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	primary.down.Store(true)
	store, _, hook := newTestFallback(t, primary, 10)

	_, err := store.Incr(ctx, "k")
	require.NoError(t, err)
	require.True(t, store.Degraded())

	primary.down.Store(false)
	_, err = store.Incr(ctx, "k")
	require.NoError(t, err)

	assert.False(t, store.Degraded())
	assert.Equal(t, "Rate limiting restored to distributed store", hook.LastEntry().Message)
}

func TestFallbackStore_NotFoundIsNotAFailure(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	store, local, _ := newTestFallback(t, primary, 1)

	require.NoError(t, local.SetWithTTL(ctx, "k", "stale", time.Minute))

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, store.Degraded())
	assert.Equal(t, circuitbreaker.StateClosed, store.Breaker().State())
}

func TestFallbackStore_OpenBreakerSkipsPrimary(t *testing.T) {
	ctx := context.Background()
	primary := newFlakyStore()
	primary.down.Store(true)
	store, _, _ := newTestFallback(t, primary, 2)

	for i := 0; i < 2; i++ {
		_, err := store.Incr(ctx, "k")
		require.NoError(t, err)
	}
	require.Equal(t, circuitbreaker.StateOpen, store.Breaker().State())
	callsBefore := primary.calls.Load()

	n, err := store.Incr(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, callsBefore, primary.calls.Load(), "open breaker must not touch the primary")
}

func TestFallbackStore_NilPrimaryIsPermanentFallback(t *testing.T) {
	ctx := context.Background()
	store, local, _ := newTestFallback(t, nil, 1)

	require.NoError(t, store.SetWithTTL(ctx, "k", "v", time.Minute))

	v, err := local.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.True(t, store.Degraded())
}

func TestFallbackStore_CancelledCallersDoNotTripBreaker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store, local, _ := newTestFallback(t, NewRedisStore(NewRedisFromClient(client)), 3)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := store.Incr(cancelled, "ratelimit:login:1.2.3.4")
		assert.ErrorIs(t, err, context.Canceled)
	}

	assert.False(t, store.Degraded())
	assert.Equal(t, circuitbreaker.StateClosed, store.Breaker().State())
	assert.Zero(t, local.Len(), "cancelled calls must not touch the in-process store")

	n, err := store.Incr(context.Background(), "ratelimit:login:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, mr.Exists("ratelimit:login:1.2.3.4"))
	assert.Zero(t, local.Len())
}

func TestFallbackStore_CallerDeadlineMidCallIsNotAFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	local := NewMemoryStore()
	store := NewFallbackStore(stallingStore{NewMemoryStore()}, local, FallbackOptions{
		Timeout:     time.Second,
		MaxFailures: 1,
		OpenTimeout: time.Minute,
		Logger:      logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := store.Incr(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, circuitbreaker.StateClosed, store.Breaker().State())
	assert.False(t, store.Degraded())
	assert.Zero(t, local.Len())
}

func TestFallbackStore_PrimaryTimeoutStillCountsAsFailure(t *testing.T) {
	store, local, _ := newTestFallback(t, stallingStore{NewMemoryStore()}, 1)

	n, err := store.Incr(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, circuitbreaker.StateOpen, store.Breaker().State())
	assert.True(t, store.Degraded())
	assert.Equal(t, 1, local.Len())
}

func TestFallbackStore_ObservesInjectedBreaker(t *testing.T) {
	logger, hook := test.NewNullLogger()
	primary := newFlakyStore()
	primary.down.Store(true)

	store := NewFallbackStore(primary, NewMemoryStore(), FallbackOptions{
		Timeout: 50 * time.Millisecond,
		Breaker: circuitbreaker.New(circuitbreaker.Config{MaxFailures: 1}),
		Logger:  logger,
	})

	_, err := store.Incr(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, circuitbreaker.StateOpen, store.Breaker().State())

	var transition *logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Distributed store circuit breaker changed state" {
			transition = entry
		}
	}
	require.NotNil(t, transition)
	assert.Equal(t, "closed", transition.Data["from"])
	assert.Equal(t, "open", transition.Data["to"])
}
