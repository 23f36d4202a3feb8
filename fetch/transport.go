package fetch

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultMaxIdleConns    = 100
	defaultIdleConnTimeout = 90 * time.Second
	defaultReadIdleTimeout = 30 * time.Second
	defaultPingTimeout     = 15 * time.Second
)

type transportSettings struct {
	dialTimeout     time.Duration
	maxIdleConns    int
	readIdleTimeout time.Duration
	disableHTTP2    bool
}

// newTransport builds the base transport of a fresh client. HTTP/2 is
// negotiated over TLS; idle HTTP/2 connections are health checked with
// pings so a dead connection fails fast instead of hanging a request.
//
// Compression is disabled on the transport because the fetcher sets
// Accept-Encoding itself and decodes bodies on its own.
func newTransport(s transportSettings) (*http.Transport, error) {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   s.dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          s.maxIdleConns,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
	}

	if s.disableHTTP2 {
		return t, nil
	}

	h2, err := http2.ConfigureTransports(t)
	if err != nil {
		return nil, fmt.Errorf("configuring http2: %w", err)
	}
	h2.ReadIdleTimeout = s.readIdleTimeout
	h2.PingTimeout = defaultPingTimeout

	return t, nil
}
