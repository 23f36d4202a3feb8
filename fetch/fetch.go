package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/httpfetch/fetch/decode"
	"github.com/adamwoolhether/httpfetch/fetch/throttle"
)

// Fetcher issues GET requests through a shared, renewable client,
// classifies the responses and decodes their bodies.
// It is safe for concurrent use.
type Fetcher struct {
	holder   *Holder
	decoders *decode.Registry
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Build creates a [Fetcher]. Redirects are never followed: a redirect
// status is reported as an error of kind [KindMoved].
func Build(optFns ...ClientOption) (*Fetcher, error) {
	var opts clientOpts
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	f := &Fetcher{
		decoders: decode.Default(),
		logger:   slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer("no-op tracer"),
	}

	if opts.decoders != nil {
		f.decoders = opts.decoders
	}
	if opts.logger != nil {
		f.logger = opts.logger
	}
	if opts.tracer != nil {
		f.tracer = opts.tracer
	}

	settings := transportSettings{
		dialTimeout:     defaultDialTimeout,
		maxIdleConns:    defaultMaxIdleConns,
		readIdleTimeout: defaultReadIdleTimeout,
		disableHTTP2:    opts.disableHTTP2,
	}
	if opts.dialTimeout > 0 {
		settings.dialTimeout = opts.dialTimeout
	}
	if opts.maxIdleConns > 0 {
		settings.maxIdleConns = opts.maxIdleConns
	}
	if opts.readIdleTimeout != nil {
		settings.readIdleTimeout = *opts.readIdleTimeout
	}

	var limiter *throttle.Limiter
	if opts.throttle != nil {
		l, err := throttle.NewLimiter(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return f.logger })
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		limiter = l
	}

	newClient := func() (*http.Client, error) {
		var transport http.RoundTripper
		if opts.rt != nil {
			transport = opts.rt
		} else {
			t, err := newTransport(settings)
			if err != nil {
				return nil, err
			}
			transport = t
		}

		if limiter != nil {
			transport = limiter.Wrap(transport)
		}

		return &http.Client{
			Transport: transport,
			Timeout:   opts.timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}, nil
	}

	holder, err := NewHolder(newClient)
	if err != nil {
		return nil, err
	}
	f.holder = holder

	return f, nil
}

// Renew replaces the shared client with a new one. Use it to recover
// from transport failures the current client cannot get out of, such as
// a server refusing further HTTP/2 streams. It is never called implicitly.
func (f *Fetcher) Renew() error {
	if err := f.holder.Renew(); err != nil {
		return fmt.Errorf("renewing client: %w", err)
	}

	f.logger.Debug("fetch client renewed", "renewals", f.holder.Renewals())

	return nil
}

// Holder exposes the client holder backing f.
func (f *Fetcher) Holder() *Holder {
	return f.holder
}

// Send builds the request for address and sends it exactly once.
// On 200 the response is returned with its body still encoded; the
// caller must close it. Any other status yields a *[StatusError].
func (f *Fetcher) Send(ctx context.Context, address string, opts Options) (*http.Response, error) {
	req, err := NewRequest(ctx, address, opts)
	if err != nil {
		return nil, err
	}

	return f.Do(req)
}

// Do sends req through the current client and classifies the response
// like [Fetcher.Send]. Only GET requests are sent; any other method
// yields [ErrUnsupportedMethod] without touching the network.
func (f *Fetcher) Do(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, req.Method)
	}

	fetchID := uuid.NewString()

	ctx, span := f.tracer.Start(req.Context(), "fetch.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("fetch.id", fetchID),
			attribute.String("url.full", req.URL.String()),
		),
	)
	defer span.End()

	req = req.WithContext(ctx)
	log := f.logger.With("fetch_id", fetchID, "url", req.URL.String())

	log.Debug("fetch dispatched")

	resp, err := f.holder.Client().Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrTransport.Error())
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	span.SetAttributes(
		attribute.Int("http.response.status_code", resp.StatusCode),
		attribute.String("network.protocol.version", resp.Proto),
	)

	if err := Classify(resp.StatusCode, resp.Header); err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Debug("fetch rejected", "status", resp.StatusCode, "error", err)
		f.discard(resp.Body)
		return nil, err
	}

	log.Debug("fetch accepted", "proto", resp.Proto, "content_encoding", ContentEncoding(resp.Header))

	return resp, nil
}

// Stream sends the request like [Fetcher.Send] and returns the body
// decoded according to its Content-Encoding. The caller must close the
// returned [Response].
func (f *Fetcher) Stream(ctx context.Context, address string, opts Options) (*Response, error) {
	resp, err := f.Send(ctx, address, opts)
	if err != nil {
		return nil, err
	}

	body, err := f.decoders.Decode(ContentEncoding(resp.Header), resp.Body)
	if err != nil {
		f.discard(resp.Body)
		return nil, fmt.Errorf("decoding body: %w", err)
	}

	return newResponse(resp, body), nil
}

// String fetches address and returns the whole decoded body as UTF-8
// text. Invalid byte sequences become U+FFFD. The body is held in
// memory, so use [Fetcher.Stream] for large payloads.
func (f *Fetcher) String(ctx context.Context, address string, opts Options) (string, error) {
	resp, err := f.Stream(ctx, address, opts)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Close(); err != nil {
			f.logger.Error("failed to close response body", "error", err)
		}
	}()

	var sb strings.Builder
	if _, err := io.Copy(&sb, resp.Text()); err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	return sb.String(), nil
}

// Decode wraps body in the decoder the fetcher uses for encoding.
func (f *Fetcher) Decode(encoding string, body io.Reader) (io.ReadCloser, error) {
	return f.decoders.Decode(encoding, body)
}

// discard drains a bounded amount of body so the connection can be
// reused, then closes it.
func (f *Fetcher) discard(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, io.LimitReader(body, maxDrainSize)); err != nil {
		f.logger.Error("failed to discard unused body", "error", err)
	}
	if err := body.Close(); err != nil {
		f.logger.Error("failed to close response body", "error", err)
	}
}

// Decode wraps body with the default gzip/brotli registry.
func Decode(encoding string, body io.Reader) (io.ReadCloser, error) {
	return decode.Decode(encoding, body)
}

// ContentEncoding returns the first Content-Encoding value of h,
// or "" if there is none.
func ContentEncoding(h http.Header) string {
	return h.Get("Content-Encoding")
}
