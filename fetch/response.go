package fetch

import (
	"errors"
	"io"
	"net/http"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Response is a successful fetch whose body is still being streamed
// from the network.
type Response struct {
	StatusCode int
	Header     http.Header
	// ContentLength is the number of decoded bytes if known, or -1.
	ContentLength int64
	// Body yields the decoded bytes. It can be read only once.
	Body io.ReadCloser

	raw io.ReadCloser
}

func newResponse(resp *http.Response, body io.ReadCloser) *Response {
	length := resp.ContentLength
	if enc := ContentEncoding(resp.Header); enc != "" && enc != "identity" {
		length = -1
	}

	return &Response{
		StatusCode:    resp.StatusCode,
		Header:        resp.Header,
		ContentLength: length,
		Body:          body,
		raw:           resp.Body,
	}
}

// ContentEncoding returns the encoding the body was decoded from.
func (r *Response) ContentEncoding() string {
	return ContentEncoding(r.Header)
}

// Text returns Body as a stream of UTF-8 text. Invalid byte sequences
// become U+FFFD. Reading from it consumes Body.
func (r *Response) Text() io.Reader {
	return transform.NewReader(r.Body, unicode.UTF8.NewDecoder())
}

// Close releases the decoder and the underlying network stream.
func (r *Response) Close() error {
	return errors.Join(r.Body.Close(), r.raw.Close())
}
