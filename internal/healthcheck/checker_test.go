package healthcheck

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type switchProbe struct {
	failing atomic.Bool
}

func (p *switchProbe) Check(ctx context.Context) error {
	if p.failing.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func newTestChecker(probes ...Probe) *Checker {
	logger, _ := test.NewNullLogger()
	return NewChecker(&Config{
		Probes:      probes,
		MaxFailures: 2,
		Timeout:     100 * time.Millisecond,
		Logger:      logger,
	})
}

func TestChecker_HealthyByDefault(t *testing.T) {
	redis := &switchProbe{}
	c := newTestChecker(Probe{Name: "redis", Check: redis.Check})

	assert.Equal(t, Healthy, c.OverallHealth())

	c.CheckAll(context.Background())
	assert.Equal(t, Healthy, c.OverallHealth())
	assert.False(t, c.GetStatus("redis").LastSuccess.IsZero())
}

func TestChecker_NonCriticalFailureDegrades(t *testing.T) {
	redis := &switchProbe{}
	redis.failing.Store(true)
	c := newTestChecker(Probe{Name: "redis", Check: redis.Check})

	c.CheckAll(context.Background())
	assert.Equal(t, Healthy, c.OverallHealth(), "one failure is below the threshold")

	c.CheckAll(context.Background())
	assert.Equal(t, Degraded, c.OverallHealth())

	status := c.GetStatus("redis")
	require.NotNil(t, status)
	assert.False(t, status.IsHealthy)
	assert.Equal(t, 2, status.FailureCount)
	assert.Equal(t, "connection refused", status.LastError)

	redis.failing.Store(false)
	c.CheckAll(context.Background())
	assert.Equal(t, Healthy, c.OverallHealth())
	assert.Zero(t, c.GetStatus("redis").FailureCount)
}

func TestChecker_CriticalFailureIsUnhealthy(t *testing.T) {
	redis := &switchProbe{}
	db := &switchProbe{}
	redis.failing.Store(true)
	db.failing.Store(true)

	c := newTestChecker(
		Probe{Name: "redis", Check: redis.Check},
		Probe{Name: "postgres", Check: db.Check, Critical: true},
	)

	c.CheckAll(context.Background())
	c.CheckAll(context.Background())

	assert.Equal(t, Unhealthy, c.OverallHealth())
	assert.Len(t, c.GetAllStatus(), 2)
}

func TestChecker_ProbeTimeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	c := newTestChecker(Probe{Name: "slow", Check: slow})

	c.CheckAll(context.Background())

	assert.Equal(t, context.DeadlineExceeded.Error(), c.GetStatus("slow").LastError)
}

func TestChecker_StartStop(t *testing.T) {
	var calls atomic.Int32
	probe := func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}

	logger, _ := test.NewNullLogger()
	c := NewChecker(&Config{
		Probes:   []Probe{{Name: "p", Check: probe}},
		Interval: 10 * time.Millisecond,
		Logger:   logger,
	})

	c.Start()
	c.Start()
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	c.Stop()
	c.Stop()
}

func TestHealthStatus_String(t *testing.T) {
	assert.Equal(t, "healthy", Healthy.String())
	assert.Equal(t, "degraded", Degraded.String())
	assert.Equal(t, "unhealthy", Unhealthy.String())
	assert.Equal(t, "unknown", HealthStatus(42).String())
}
