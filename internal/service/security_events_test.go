package service

import (
	"context"
	"testing"
	"time"

	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRecorder_FlushesFullBatches(t *testing.T) {
	sink := &recordingSink{}
	logger, _ := test.NewNullLogger()
	rec := NewEventRecorder(sink, EventRecorderOptions{BatchSize: 3, FlushInterval: time.Hour}, logger)
	rec.Start()

	for i := 0; i < 6; i++ {
		rec.Record(models.SecurityEvent{Type: models.EventRateLimited})
	}

	assert.Eventually(t, func() bool { return sink.total() == 6 }, time.Second, 10*time.Millisecond)
	require.NoError(t, rec.Close(context.Background()))
}

func TestEventRecorder_FlushesOnTicker(t *testing.T) {
	sink := &recordingSink{}
	logger, _ := test.NewNullLogger()
	rec := NewEventRecorder(sink, EventRecorderOptions{BatchSize: 100, FlushInterval: 20 * time.Millisecond}, logger)
	rec.Start()
	defer rec.Close(context.Background())

	rec.Record(models.SecurityEvent{Type: models.EventMaliciousInput})

	assert.Eventually(t, func() bool { return sink.total() == 1 }, time.Second, 10*time.Millisecond)
}

func TestEventRecorder_CloseFlushesQueue(t *testing.T) {
	sink := &recordingSink{}
	logger, _ := test.NewNullLogger()
	rec := NewEventRecorder(sink, EventRecorderOptions{BatchSize: 100, FlushInterval: time.Hour}, logger)

	for i := 0; i < 5; i++ {
		rec.Record(models.SecurityEvent{Type: models.EventInvalidToken})
	}

	require.NoError(t, rec.Close(context.Background()))
	assert.Equal(t, 5, sink.total())

	rec.Record(models.SecurityEvent{Type: models.EventInvalidToken})
	assert.Equal(t, 5, sink.total(), "events after close are dropped")
}

func TestEventRecorder_DropsWhenQueueFull(t *testing.T) {
	sink := &recordingSink{}
	logger, hook := test.NewNullLogger()
	rec := NewEventRecorder(sink, EventRecorderOptions{BufferSize: 2, BatchSize: 100, FlushInterval: time.Hour}, logger)

	for i := 0; i < 5; i++ {
		rec.Record(models.SecurityEvent{Type: models.EventCSRFMismatch})
	}

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Security event queue full, dropping event", hook.LastEntry().Message)

	require.NoError(t, rec.Close(context.Background()))
	assert.Equal(t, 2, sink.total())
}

func TestEventRecorder_StampsTimestamp(t *testing.T) {
	sink := &recordingSink{}
	logger, _ := test.NewNullLogger()
	rec := NewEventRecorder(sink, EventRecorderOptions{}, logger)
	fixed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	rec.Record(models.SecurityEvent{Type: models.EventLoginFailed})
	require.NoError(t, rec.Close(context.Background()))

	require.Len(t, sink.batches, 1)
	assert.Equal(t, fixed, sink.batches[0][0].Timestamp)
}
