package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

// Server runs an http.Server until its context is cancelled and then shuts
// it down gracefully.
type Server struct {
	opts options

	mu  sync.Mutex
	srv *http.Server
}

// New returns a configured Server.
func New(opts ...Option) *Server {
	o := options{
		addr:            ":8080",
		readTimeout:     10 * time.Second,
		writeTimeout:    10 * time.Second,
		idleTimeout:     120 * time.Second,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Server{opts: o}
}

// Run serves handler and blocks until ctx is cancelled or the listener fails.
// Cancellation triggers a graceful shutdown bounded by the shutdown timeout.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, ErrAlreadyRunning)
	}
	srv := &http.Server{
		Addr:              s.opts.addr,
		Handler:           handler,
		ReadTimeout:       s.opts.readTimeout,
		ReadHeaderTimeout: s.opts.readTimeout,
		WriteTimeout:      s.opts.writeTimeout,
		IdleTimeout:       s.opts.idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.srv = srv
	s.mu.Unlock()

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return errors.Join(ErrStart, err)
	}
	s.opts.logger.InfoContext(ctx, "http server listening", logger.Component("http"), "addr", ln.Addr().String())
	if s.opts.onListen != nil {
		s.opts.onListen(ln.Addr())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		if err := s.shutdown(context.WithoutCancel(ctx)); err != nil {
			<-errCh
			return err
		}
		err = <-errCh
	case err = <-errCh:
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrStart, err)
	}
	return nil
}

func (s *Server) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
	defer cancel()

	s.opts.logger.InfoContext(ctx, "http server shutting down", logger.Component("http"))
	if err := s.srv.Shutdown(ctx); err != nil {
		_ = s.srv.Close()
		return errors.Join(ErrShutdown, err)
	}
	return nil
}
