package httpfetch_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adamwoolhether/httpfetch"
	"github.com/adamwoolhether/httpfetch/fetch"
)

func TestDefault_IsShared(t *testing.T) {
	a, err := httpfetch.Default()
	if err != nil {
		t.Fatalf("expected nil err, got: %v", err)
	}
	b, err := httpfetch.Default()
	if err != nil {
		t.Fatalf("expected nil err, got: %v", err)
	}

	if a != b {
		t.Error("expected the same default fetcher")
	}
}

func TestStreamAndRenew(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("streamed"))
	}))
	defer ts.Close()

	f, _ := httpfetch.Default()
	before := f.Holder().Renewals()

	if err := httpfetch.Renew(); err != nil {
		t.Fatalf("expected nil err, got: %v", err)
	}
	if f.Holder().Renewals() != before+1 {
		t.Errorf("expected renewals to grow by one, got %d", f.Holder().Renewals()-before)
	}

	resp, err := httpfetch.Stream(t.Context(), ts.URL, fetch.Options{})
	if err != nil {
		t.Fatalf("expected nil err, got: %v", err)
	}
	defer resp.Close()

	if resp.ContentLength != int64(len("streamed")) {
		t.Errorf("expected content length %d, got %d", len("streamed"), resp.ContentLength)
	}
}
