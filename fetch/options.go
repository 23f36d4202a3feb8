package fetch

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpfetch/fetch/decode"
	"github.com/adamwoolhether/httpfetch/fetch/throttle"
)

// ClientOption is a functional option for configuring a [Fetcher] via [Build].
type ClientOption func(*clientOpts) error
type clientOpts struct {
	rt              http.RoundTripper
	timeout         time.Duration
	dialTimeout     time.Duration
	maxIdleConns    int
	readIdleTimeout *time.Duration
	disableHTTP2    bool
	throttle        *throttle.Config
	decoders        *decode.Registry
	logger          *slog.Logger
	tracer          trace.Tracer
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
// The same round tripper is reused when the client is renewed, so only
// the default transport gets fresh connections on [Fetcher.Renew].
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *clientOpts) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithTimeout bounds each request on the underlying [http.Client],
// including the time spent reading the body. Zero means no limit.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientOpts) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = d
		return nil
	}
}

// WithDialTimeout bounds connection establishment on the default transport.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *clientOpts) error {
		if d <= 0 {
			return errors.New("dial timeout must be positive")
		}
		c.dialTimeout = d
		return nil
	}
}

// WithMaxIdleConns caps idle connections kept by the default transport.
// Zero keeps the default of 100.
func WithMaxIdleConns(n int) ClientOption {
	return func(c *clientOpts) error {
		if n < 0 {
			return errors.New("max idle conns must not be negative")
		}
		c.maxIdleConns = n
		return nil
	}
}

// WithHTTP2HealthCheck sets how long an HTTP/2 connection may stay silent
// before it is pinged. Zero disables the health check.
func WithHTTP2HealthCheck(readIdle time.Duration) ClientOption {
	return func(c *clientOpts) error {
		if readIdle < 0 {
			return errors.New("read idle timeout must not be negative")
		}
		c.readIdleTimeout = &readIdle
		return nil
	}
}

// WithoutHTTP2 restricts the default transport to HTTP/1.1.
func WithoutHTTP2() ClientOption {
	return func(c *clientOpts) error {
		c.disableHTTP2 = true
		return nil
	}
}

// WithThrottle enables per-host token-bucket rate limiting with the given
// requests per second and burst capacity. The buckets survive renewals.
func WithThrottle(rps, burst int) ClientOption {
	return func(c *clientOpts) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		c.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithDecoders replaces the default gzip/brotli decoder registry.
func WithDecoders(reg *decode.Registry) ClientOption {
	return func(c *clientOpts) error {
		if reg == nil {
			return errors.New("decoder registry must not be nil")
		}
		c.decoders = reg
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Fetcher].
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientOpts) error {
		c.logger = logger
		return nil
	}
}

// WithTracer records a span for every request sent by the [Fetcher].
func WithTracer(tracer trace.Tracer) ClientOption {
	return func(c *clientOpts) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		c.tracer = tracer
		return nil
	}
}
