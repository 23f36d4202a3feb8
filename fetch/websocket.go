package fetch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
)

// DialWebSocket opens a websocket to address over the currently
// installed client. A nil opts uses the defaults; an opts without an
// HTTPClient gets the shared one.
func (f *Fetcher) DialWebSocket(ctx context.Context, address string, opts *websocket.DialOptions) (*websocket.Conn, *http.Response, error) {
	var dialOpts websocket.DialOptions
	if opts != nil {
		dialOpts = *opts
	}
	if dialOpts.HTTPClient == nil {
		dialOpts.HTTPClient = f.holder.Client()
	}

	conn, resp, err := websocket.Dial(ctx, address, &dialOpts)
	if err != nil {
		return nil, resp, fmt.Errorf("dialing websocket: %w", err)
	}

	return conn, resp, nil
}
