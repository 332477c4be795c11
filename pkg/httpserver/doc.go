// Package httpserver runs an http.Handler with timeouts and a graceful
// shutdown tied to a context, and provides a JSON health endpoint.
//
// Run blocks until its context is cancelled, which makes it a natural
// member of an errgroup:
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// Listen failures are wrapped with ErrStart and shutdown failures with
// ErrShutdown.
package httpserver
