// Package httpfetch exposes the fetcher builder and a shared default
// fetcher for one-off requests.
package httpfetch

import (
	"context"
	"sync"

	"github.com/adamwoolhether/httpfetch/fetch"
)

// New instantiates a new *fetch.Fetcher with the provided options.
// If not specified, the default transport, decoders and logger are used.
func New(opts ...fetch.ClientOption) (*fetch.Fetcher, error) {
	return fetch.Build(opts...)
}

var defaultFetcher = sync.OnceValues(func() (*fetch.Fetcher, error) {
	return fetch.Build()
})

// Default returns the fetcher shared by the package-level helpers,
// building it on first use.
func Default() (*fetch.Fetcher, error) {
	return defaultFetcher()
}

// String fetches address with the default fetcher and returns the
// decoded body as text.
func String(ctx context.Context, address string, opts fetch.Options) (string, error) {
	f, err := Default()
	if err != nil {
		return "", err
	}

	return f.String(ctx, address, opts)
}

// Stream fetches address with the default fetcher and returns the
// decoded body as a stream. The caller must close the response.
func Stream(ctx context.Context, address string, opts fetch.Options) (*fetch.Response, error) {
	f, err := Default()
	if err != nil {
		return nil, err
	}

	return f.Stream(ctx, address, opts)
}

// Renew replaces the client of the default fetcher.
func Renew() error {
	f, err := Default()
	if err != nil {
		return err
	}

	return f.Renew()
}
