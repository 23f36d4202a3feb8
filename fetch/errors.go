package fetch

import (
	"errors"
	"fmt"

	"github.com/adamwoolhether/httpfetch/fetch/decode"
)

// maxDrainSize caps how much of a rejected response body is read
// before closing it, so the connection can be reused.
const maxDrainSize = 4 << 10 // 4KB

var (
	// ErrNonOK is matched by every [StatusError].
	ErrNonOK = errors.New("non-ok status")
	// ErrMoved is matched by redirect responses (301, 302, 303, 307, 308).
	ErrMoved = errors.New("moved")
	// ErrForbidden is matched by 403 responses.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is matched by 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrTransport wraps failures of the underlying client, such as refused
	// connections, timeouts, cancellation or exhausted HTTP/2 streams.
	// The original error stays in the chain. See [Fetcher.Renew].
	ErrTransport = errors.New("transport failure")

	// ErrUnsupportedMethod is returned by [Fetcher.Do] for anything but GET.
	ErrUnsupportedMethod = errors.New("unsupported method")

	// ErrUnsupportedEncoding is re-exported from [decode].
	ErrUnsupportedEncoding = decode.ErrUnsupportedEncoding
)

// UnsupportedEncodingError names the Content-Encoding value with no decoder.
type UnsupportedEncodingError = decode.UnsupportedEncodingError

// Kind classifies a non-200 response.
type Kind int

const (
	// KindNonOK is any non-200 status without a more specific kind.
	KindNonOK Kind = iota
	KindMoved
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNonOK:
		return "non_ok"
	case KindMoved:
		return "moved"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindMoved:
		return ErrMoved
	case KindForbidden:
		return ErrForbidden
	case KindNotFound:
		return ErrNotFound
	default:
		return ErrNonOK
	}
}

// StatusError is returned when the server answers with anything but 200.
type StatusError struct {
	Kind       Kind
	StatusCode int
	// Location is the redirect target of a KindMoved error.
	// It is empty when the response carried no Location header.
	Location string
}

func (e *StatusError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%v: %d, location: %s", e.Kind.sentinel(), e.StatusCode, e.Location)
	}

	return fmt.Sprintf("%v: %d", e.Kind.sentinel(), e.StatusCode)
}

func (e *StatusError) Unwrap() []error {
	if e.Kind.sentinel() == ErrNonOK {
		return []error{ErrNonOK}
	}

	return []error{e.Kind.sentinel(), ErrNonOK}
}

// IsMoved reports whether err is a redirect [StatusError].
func IsMoved(err error) bool { return errors.Is(err, ErrMoved) }

// IsForbidden reports whether err is a 403 [StatusError].
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsNotFound reports whether err is a 404 [StatusError].
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransport reports whether err came from the underlying client
// rather than from the server's response.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }

// StatusCode returns the status carried by a [StatusError] in err's chain,
// or 0 if there is none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}

	return 0
}
