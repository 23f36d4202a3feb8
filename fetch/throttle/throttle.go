package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config defines the per-host
// Requests Per Second and Burst Rate.
type Config struct {
	RPS   int
	Burst int
}

// Limiter holds one token bucket per request host. A single Limiter
// may wrap any number of transports; they all draw from the same buckets.
type Limiter struct {
	cfg   Config
	logFn func() *slog.Logger

	mu      sync.Mutex
	hosts   map[string]*rate.Limiter
	sweepAt int
}

// minSweepAt is the host count at which full buckets start being evicted.
const minSweepAt = 1024

// NewLimiter returns a Limiter allowing rps requests per second to each
// host, with bursts of up to burst requests. logFn lazily resolves the
// logger at request time. A nil-returning logFn disables logging.
func NewLimiter(rps, burst int, logFn func() *slog.Logger) (*Limiter, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}

	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	l := &Limiter{
		cfg:   Config{RPS: rps, Burst: burst},
		logFn: logFn,
		hosts:   make(map[string]*rate.Limiter),
		sweepAt: minSweepAt,
	}

	return l, nil
}

// Wrap returns an http.RoundTripper that waits for a token for the
// request's host before delegating to next.
func (l *Limiter) Wrap(next http.RoundTripper) http.RoundTripper {
	return &roundTripper{limiter: l, next: next}
}

// Hosts reports how many distinct hosts currently have a bucket.
func (l *Limiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.hosts)
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.hosts[host]
	if !ok {
		if len(l.hosts) >= l.sweepAt {
			l.sweep()
		}
		b = rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)
		l.hosts[host] = b
	}

	return b
}

// sweep drops buckets that have refilled completely. A full bucket
// behaves exactly like a new one, so dropping it loses no state.
// The next sweep waits until the map has doubled, keeping inserts
// amortized O(1) when most hosts are busy. l.mu must be held.
func (l *Limiter) sweep() {
	now := time.Now()
	for host, b := range l.hosts {
		if b.TokensAt(now) >= float64(l.cfg.Burst) {
			delete(l.hosts, host)
		}
	}

	l.sweepAt = max(minSweepAt, 2*len(l.hosts))
}

// roundTripper is an http.RoundTripper, using the host's token
// bucket to restrict outbound calls.
type roundTripper struct {
	limiter *Limiter
	next    http.RoundTripper
}

func (t *roundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	host := r.URL.Host
	bucket := t.limiter.bucket(host)
	cfg := t.limiter.cfg

	var waited time.Duration
	logger := t.limiter.logFn()
	if logger != nil && bucket.Tokens() < 1 {
		logger.Info("throttle tokens exhausted", "host", host, "rate", cfg.RPS, "burst", cfg.Burst)

		defer func() {
			logger.Info("throttle wait complete", "host", host, "waited", waited.String())
		}()
	}

	start := time.Now()

	err := bucket.Wait(ctx)
	waited = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := ctx.Err(); err != nil { // Check context hasn't expired again.
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return t.next.RoundTrip(r)
}

// CloseIdleConnections forwards to next, so that
// [http.Client.CloseIdleConnections] reaches the wrapped transport.
func (t *roundTripper) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if c, ok := t.next.(closeIdler); ok {
		c.CloseIdleConnections()
	}
}
