// Package throttle rate-limits outbound HTTP requests per host using
// token buckets from [golang.org/x/time/rate].
//
// # Usage
//
// Build a [Limiter] once and wrap every transport that should share it:
//
//	l, err := throttle.NewLimiter(
//		2, // requests per second, per host
//		4, // burst capacity, per host
//		func() *slog.Logger { return slog.Default() },
//	)
//	httpClient := &http.Client{Transport: l.Wrap(http.DefaultTransport)}
//
// Buckets live on the Limiter rather than the transport, so replacing
// the underlying transport does not reset a host's budget. When a host's
// budget is spent, requests to it block until a token becomes available
// or the request context ends. Requests to other hosts are unaffected.
package throttle
