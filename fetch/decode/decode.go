// Package decode wraps HTTP response bodies in the decompressing reader
// matching their declared Content-Encoding.
//
// Decoding is lazy: bytes are decompressed as the caller reads them. The
// returned readers are forward-only and cannot be rewound; a new request is
// required to read the body again.
package decode

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

const (
	// Identity is the Content-Encoding value for an unmodified body.
	Identity = "identity"
	// Gzip is the Content-Encoding value for gzip compressed bodies.
	Gzip = "gzip"
	// Brotli is the Content-Encoding value for brotli compressed bodies.
	Brotli = "br"
)

var (
	// ErrUnsupportedEncoding is wrapped by [UnsupportedEncodingError].
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
	ErrNilDecoder          = errors.New("decoder must not be nil")
	ErrReservedEncoding    = errors.New("encoding is reserved")
)

// UnsupportedEncodingError names a Content-Encoding value that has
// no registered decoder.
type UnsupportedEncodingError struct {
	Encoding string
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnsupportedEncoding, e.Encoding)
}

func (e *UnsupportedEncodingError) Unwrap() error {
	return ErrUnsupportedEncoding
}

// Decoder wraps r in a reader yielding the decoded bytes of r.
type Decoder func(r io.Reader) (io.ReadCloser, error)

// Registry maps Content-Encoding tags to decoders.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry returns a Registry with no decoders beyond the identity pass-through.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Default returns a new Registry holding the gzip and brotli decoders.
//
// deflate is announced in the Accept-Encoding request header but is not
// registered here; callers needing it can add it with [Registry.Register].
func Default() *Registry {
	r := NewRegistry()
	r.decoders[Gzip] = NewGzip
	r.decoders[Brotli] = NewBrotli

	return r
}

// Register adds or replaces the decoder for encoding. Matching is exact,
// so "gzip" and "GZIP" are distinct tags. The empty and identity
// encodings always pass through and cannot be registered.
func (r *Registry) Register(encoding string, d Decoder) error {
	if encoding == "" || encoding == Identity {
		return fmt.Errorf("%q: %w", encoding, ErrReservedEncoding)
	}
	if d == nil {
		return fmt.Errorf("%q: %w", encoding, ErrNilDecoder)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[encoding] = d

	return nil
}

// Encodings lists the registered tags in sorted order.
func (r *Registry) Encodings() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.decoders))
	for tag := range r.decoders {
		tags = append(tags, tag)
	}
	slices.Sort(tags)

	return tags
}

// Decode wraps body according to encoding. An empty or identity
// encoding returns body unchanged behind a no-op Close.
// Closing the returned reader never closes body.
func (r *Registry) Decode(encoding string, body io.Reader) (io.ReadCloser, error) {
	if encoding == "" || encoding == Identity {
		return io.NopCloser(body), nil
	}

	r.mu.RLock()
	d, ok := r.decoders[encoding]
	r.mu.RUnlock()

	if !ok {
		return nil, &UnsupportedEncodingError{Encoding: encoding}
	}

	rc, err := d(body)
	if err != nil {
		return nil, fmt.Errorf("opening %s decoder: %w", encoding, err)
	}

	return rc, nil
}

var defaultRegistry = Default()

// Decode wraps body using the package level default registry.
func Decode(encoding string, body io.Reader) (io.ReadCloser, error) {
	return defaultRegistry.Decode(encoding, body)
}

// NewGzip returns a gzip decoding reader. The gzip header is not read
// until the first Read, so constructing it never blocks on the network.
// A body with no bytes at all decodes to an empty stream.
func NewGzip(r io.Reader) (io.ReadCloser, error) {
	return &lazyReader{open: func() (io.ReadCloser, error) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr, nil
	}}, nil
}

// NewBrotli returns a brotli decoding reader.
func NewBrotli(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}

// lazyReader defers opening the underlying decoder until the first Read.
type lazyReader struct {
	open func() (io.ReadCloser, error)
	rc   io.ReadCloser
	err  error
}

func (l *lazyReader) Read(p []byte) (int, error) {
	if l.rc == nil && l.err == nil {
		l.rc, l.err = l.open()
	}
	if l.err != nil {
		return 0, l.err
	}

	return l.rc.Read(p)
}

func (l *lazyReader) Close() error {
	if l.rc == nil {
		return nil
	}

	return l.rc.Close()
}
