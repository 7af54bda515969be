package service

import (
	"context"
	"sync"
	"time"

	"github.com/aman-churiwal/secure-api/internal/metrics"
	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/sirupsen/logrus"
)

// EventSink persists a batch of security events
type EventSink interface {
	CreateBatch(ctx context.Context, events []models.SecurityEvent) error
}

type EventRecorderOptions struct {
	BufferSize    int           // default 1000
	BatchSize     int           // default 100
	FlushInterval time.Duration // default 5s
}

// EventRecorder queues security events and writes them to the sink in
// batches from a single background worker. Record never blocks: when the
// queue is full the event is dropped and counted.
type EventRecorder struct {
	sink          EventSink
	events        chan models.SecurityEvent
	batchSize     int
	flushInterval time.Duration
	log           logrus.FieldLogger
	now           func() time.Time

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

func NewEventRecorder(sink EventSink, opts EventRecorderOptions, log logrus.FieldLogger) *EventRecorder {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &EventRecorder{
		sink:          sink,
		events:        make(chan models.SecurityEvent, opts.BufferSize),
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		log:           log.WithField("component", "security_events"),
		now:           time.Now,
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

func (r *EventRecorder) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

func (r *EventRecorder) Record(event models.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}
	metrics.RecordSecurityEvent(event.Type)

	select {
	case <-r.done:
		metrics.RecordSecurityEventDropped()
		return
	default:
	}

	select {
	case r.events <- event:
	default:
		metrics.RecordSecurityEventDropped()
		r.log.WithField("type", event.Type).Warn("Security event queue full, dropping event")
	}
}

func (r *EventRecorder) run() {
	defer close(r.stopped)

	batch := make([]models.SecurityEvent, 0, r.batchSize)
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		r.insertBatch(batch)
		batch = make([]models.SecurityEvent, 0, r.batchSize)
	}

	for {
		select {
		case event := <-r.events:
			batch = append(batch, event)
			if len(batch) >= r.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.done:
			for {
				select {
				case event := <-r.events:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (r *EventRecorder) insertBatch(batch []models.SecurityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.sink.CreateBatch(ctx, batch); err != nil {
		r.log.WithError(err).WithField("count", len(batch)).Error("Failed to persist security events")
	}
}

// Close stops the worker after flushing queued events, or when ctx expires
func (r *EventRecorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() { close(r.done) })
	r.Start()

	select {
	case <-r.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
