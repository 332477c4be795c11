package quota

import "log/slog"

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. A nil logger keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the wall clock used to locate reset cycles.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetrics enables Prometheus instrumentation. Nil disables it.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNotifier enables threshold notifications after each recorded consumption.
func WithNotifier(n *Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithSpool hands increments that still fail after inline retries to sp
// instead of returning an error. The caller owns sp and must close it.
func WithSpool(sp *Spool) Option {
	return func(s *Service) { s.spool = sp }
}

// WithIncrementRetry sets how often an increment is attempted inline before
// it is spooled or reported as failed.
func WithIncrementRetry(attempts int, b Backoff) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.retryAttempts = attempts
		}
		if b != nil {
			s.retryBackoff = b
		}
	}
}
