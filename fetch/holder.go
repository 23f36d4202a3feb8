package fetch

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// ClientFunc builds a new *http.Client for a [Holder].
type ClientFunc func() (*http.Client, error)

// Holder owns the *http.Client shared by concurrent fetches and lets it
// be replaced at runtime. Use [NewHolder] to create one.
type Holder struct {
	current   atomic.Pointer[http.Client]
	newClient ClientFunc
	renewals  atomic.Uint64
}

// NewHolder installs the first client returned by newClient.
// newClient is called again on every [Holder.Renew].
func NewHolder(newClient ClientFunc) (*Holder, error) {
	if newClient == nil {
		return nil, fmt.Errorf("client func must not be nil")
	}

	hc, err := newClient()
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}

	h := &Holder{newClient: newClient}
	h.current.Store(hc)

	return h, nil
}

// Client returns the currently installed client.
func (h *Holder) Client() *http.Client {
	return h.current.Load()
}

// Renew swaps in a freshly built client. Requests already sent keep
// using the client they started with; later requests use the new one.
// Idle connections of the replaced client are closed. If building the
// new client fails the current one stays installed.
func (h *Holder) Renew() error {
	hc, err := h.newClient()
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}

	old := h.current.Swap(hc)
	h.renewals.Add(1)

	if old != nil {
		old.CloseIdleConnections()
	}

	return nil
}

// Renewals reports how many times the client has been replaced.
func (h *Holder) Renewals() uint64 {
	return h.renewals.Load()
}
