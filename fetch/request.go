package fetch

import (
	"context"
	"fmt"
	"net/http"
)

// Baseline header values sent with every request.
const (
	UserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:77.0) Gecko/20100101 Firefox/77.0"
	AcceptAny       = "*/*"
	AcceptDocuments = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	AcceptLanguage  = "en-US,en;q=0.5"

	// AcceptEncoding also announces deflate, which the default decoder
	// registry does not handle. A server choosing it yields an
	// [UnsupportedEncodingError].
	AcceptEncoding = "gzip, deflate, br"
)

// Options controls the optional request headers of a single fetch.
// String fields are omitted from the request when empty.
type Options struct {
	// AcceptAnything sends Accept: */* instead of the document preference list.
	AcceptAnything bool
	// DoNotTrack sends DNT: 1.
	DoNotTrack bool
	// UpgradeInsecureRequests sends Upgrade-Insecure-Requests: 1.
	UpgradeInsecureRequests bool
	// TETrailers sends TE: trailers.
	TETrailers bool

	// Cookies is sent verbatim as the Cookie header.
	Cookies string
	Origin  string
	Referer string
}

// NewRequest builds the GET request for address. The header set depends
// only on opts; values are passed through unvalidated.
func NewRequest(ctx context.Context, address string, opts Options) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	h := req.Header
	h.Set("User-Agent", UserAgent)

	if opts.AcceptAnything {
		h.Set("Accept", AcceptAny)
	} else {
		h.Set("Accept", AcceptDocuments)
	}

	h.Set("Accept-Language", AcceptLanguage)
	h.Set("Accept-Encoding", AcceptEncoding)

	if opts.Origin != "" {
		h.Set("Origin", opts.Origin)
	}
	if opts.Referer != "" {
		h.Set("Referer", opts.Referer)
	}
	if opts.DoNotTrack {
		h.Set("DNT", "1")
	}
	if opts.Cookies != "" {
		h.Set("Cookie", opts.Cookies)
	}
	if opts.UpgradeInsecureRequests {
		h.Set("Upgrade-Insecure-Requests", "1")
	}
	if opts.TETrailers {
		// HTTP/2 only permits the lowercase token.
		h.Set("TE", "trailers")
	}

	return req, nil
}
