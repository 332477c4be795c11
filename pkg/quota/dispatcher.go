package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

// Publisher delivers a notification event to the outside world, typically a
// message broker consumed by the notification service.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Dispatcher hands events over for delivery. Dispatch must not block on the
// delivery transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, event Event) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// AsyncDispatcher buffers events in memory and publishes them from background
// workers, retrying failed publishes with backoff. Events are dropped, with
// an error log, when the buffer is full or retries are exhausted.
type AsyncDispatcher struct {
	publisher Publisher
	logger    *slog.Logger
	metrics   *Metrics
	queue     *retryQueue[Event]
}

// DispatcherOption configures an AsyncDispatcher.
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	retryQueueConfig
	logger  *slog.Logger
	metrics *Metrics
}

// WithDispatchBuffer sets how many events may wait for delivery.
func WithDispatchBuffer(size int) DispatcherOption {
	return func(o *dispatcherOptions) {
		if size > 0 {
			o.size = size
		}
	}
}

// WithDispatchWorkers sets the number of concurrent publishers.
func WithDispatchWorkers(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithDispatchRetry sets the maximum publish attempts per event and the backoff between them.
func WithDispatchRetry(attempts int, b Backoff) DispatcherOption {
	return func(o *dispatcherOptions) {
		if attempts > 0 {
			o.attempts = attempts
		}
		if b != nil {
			o.backoff = b
		}
	}
}

// WithPublishTimeout bounds a single publish attempt.
func WithPublishTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithDispatchLogger sets the logger for publish failures and dropped events.
func WithDispatchLogger(l *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDispatchMetrics counts published, failed and dropped events.
func WithDispatchMetrics(m *Metrics) DispatcherOption {
	return func(o *dispatcherOptions) { o.metrics = m }
}

// NewAsyncDispatcher starts the delivery workers. Call Close on shutdown to
// flush buffered events.
func NewAsyncDispatcher(pub Publisher, opts ...DispatcherOption) *AsyncDispatcher {
	if pub == nil {
		panic("quota: publisher cannot be nil")
	}

	o := dispatcherOptions{
		retryQueueConfig: retryQueueConfig{
			size:     1024,
			workers:  2,
			attempts: 5,
			timeout:  10 * time.Second,
			backoff:  DefaultBackoff(),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	d := &AsyncDispatcher{
		publisher: pub,
		logger:    o.logger.With(logger.Component("quota.dispatcher")),
		metrics:   o.metrics,
	}
	d.queue = newRetryQueue(o.retryQueueConfig, d.publish, d.dropped)
	return d
}

// Dispatch enqueues event and returns immediately.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, event Event) error {
	switch err := d.queue.push(event); {
	case errors.Is(err, errQueueClosed):
		d.metrics.dispatchFailed("closed")
		return ErrDispatcherClosed
	case errors.Is(err, errQueueFull):
		d.metrics.dispatchFailed("buffer_full")
		d.logger.LogAttrs(ctx, slog.LevelError, "notification dropped, dispatch buffer full",
			eventAttrs(event)...)
		return ErrDispatchBufferFull
	}
	return nil
}

// Pending returns the number of events not yet delivered or dropped.
func (d *AsyncDispatcher) Pending() int {
	return d.queue.len()
}

// Close stops accepting events and waits until buffered ones are delivered
// or ctx expires.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	return d.queue.close(ctx)
}

func (d *AsyncDispatcher) publish(ctx context.Context, event Event) error {
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "publish notification failed",
			append(eventAttrs(event), logger.Error(err))...)
		return err
	}
	return nil
}

func (d *AsyncDispatcher) dropped(event Event, err error) {
	d.metrics.dispatchFailed("retries_exhausted")
	d.logger.LogAttrs(context.Background(), slog.LevelError, "notification dropped after retries",
		append(eventAttrs(event), logger.Error(errors.Join(ErrPublishFailed, err)))...)
}

// LogPublisher writes events to a logger. It is the default publisher when no
// broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs events at info level.
// A nil logger means slog.Default.
func NewLogPublisher(l *slog.Logger) *LogPublisher {
	if l == nil {
		l = slog.Default()
	}
	return &LogPublisher{logger: l}
}

// Publish writes event as one structured log record. It never fails.
func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.LogAttrs(ctx, slog.LevelInfo, "quota notification", eventAttrs(event)...)
	return nil
}

func eventAttrs(e Event) []slog.Attr {
	return []slog.Attr{
		logger.EventID(e.ID),
		logger.TenantID(e.TenantID),
		logger.Resource(e.Resource),
		logger.Period(e.Period),
		logger.Tier(e.Tier),
		logger.Usage(e.Count, e.Limit),
		slog.Int("percentage", e.Percentage),
	}
}
