package decode_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/adamwoolhether/httpfetch/fetch/decode"
)

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		t.Fatalf("writing gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}

	return buf.Bytes()
}

func brotliBytes(t *testing.T, b []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	if _, err := bw.Write(b); err != nil {
		t.Fatalf("writing brotli: %v", err)
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("closing brotli: %v", err)
	}

	return buf.Bytes()
}

func readAll(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()

	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading decoded body: %v", err)
	}
	if err := rc.Close(); err != nil {
		t.Fatalf("closing decoded body: %v", err)
	}

	return b
}

func TestDecode_PassThrough(t *testing.T) {
	payload := []byte("<html>plain</html>")

	for _, enc := range []string{"", decode.Identity} {
		t.Run("encoding="+enc, func(t *testing.T) {
			rc, err := decode.Decode(enc, bytes.NewReader(payload))
			if err != nil {
				t.Fatalf("exp nil err, got: %v", err)
			}

			if diff := cmp.Diff(payload, readAll(t, rc)); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	large := bytes.Repeat([]byte("0123456789abcdef"), 64<<10)

	testCases := []struct {
		name     string
		encoding string
		compress func(*testing.T, []byte) []byte
		payload  []byte
	}{
		{name: "gzip text", encoding: decode.Gzip, compress: gzipBytes, payload: []byte("hello")},
		{name: "gzip empty", encoding: decode.Gzip, compress: gzipBytes, payload: []byte{}},
		{name: "gzip large", encoding: decode.Gzip, compress: gzipBytes, payload: large},
		{name: "brotli text", encoding: decode.Brotli, compress: brotliBytes, payload: []byte("hello")},
		{name: "brotli empty", encoding: decode.Brotli, compress: brotliBytes, payload: []byte{}},
		{name: "brotli large", encoding: decode.Brotli, compress: brotliBytes, payload: large},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rc, err := decode.Decode(tc.encoding, bytes.NewReader(tc.compress(t, tc.payload)))
			if err != nil {
				t.Fatalf("exp nil err, got: %v", err)
			}

			got := readAll(t, rc)
			if !bytes.Equal(got, tc.payload) {
				t.Errorf("exp %d decoded bytes, got %d", len(tc.payload), len(got))
			}
		})
	}
}

func TestDecode_Unsupported(t *testing.T) {
	for _, enc := range []string{"zstd", "deflate", "GZIP", "gzip, br"} {
		t.Run(enc, func(t *testing.T) {
			rc, err := decode.Decode(enc, strings.NewReader("anything"))
			if rc != nil {
				t.Error("exp nil reader")
			}
			if !errors.Is(err, decode.ErrUnsupportedEncoding) {
				t.Fatalf("exp ErrUnsupportedEncoding, got: %v", err)
			}

			var encErr *decode.UnsupportedEncodingError
			if !errors.As(err, &encErr) {
				t.Fatalf("exp *UnsupportedEncodingError, got %T", err)
			}
			if encErr.Encoding != enc {
				t.Errorf("exp encoding %q, got %q", enc, encErr.Encoding)
			}
			if !strings.Contains(err.Error(), enc) {
				t.Errorf("exp error to name %q, got: %v", enc, err)
			}
		})
	}
}

func TestDecode_GzipIsLazy(t *testing.T) {
	var reads int
	src := readFunc(func(p []byte) (int, error) {
		reads++
		return 0, io.ErrUnexpectedEOF
	})

	rc, err := decode.Decode(decode.Gzip, src)
	if err != nil {
		t.Fatalf("exp nil err on construction, got: %v", err)
	}
	if reads != 0 {
		t.Fatalf("exp no reads before first Read, got %d", reads)
	}

	if _, err := io.ReadAll(rc); err == nil {
		t.Fatal("exp read error from broken source")
	}
	if reads == 0 {
		t.Error("exp source to be read")
	}
}

func TestDecode_GzipEmptyBody(t *testing.T) {
	rc, err := decode.Decode(decode.Gzip, bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}

	if got := readAll(t, rc); len(got) != 0 {
		t.Errorf("exp empty body, got %q", got)
	}
}

func TestDecode_GzipCorrupt(t *testing.T) {
	rc, err := decode.Decode(decode.Gzip, strings.NewReader("definitely not gzip"))
	if err != nil {
		t.Fatalf("exp nil err on construction, got: %v", err)
	}

	if _, err := io.ReadAll(rc); !errors.Is(err, gzip.ErrHeader) {
		t.Errorf("exp gzip.ErrHeader, got: %v", err)
	}
}

func TestDecode_NotRestartable(t *testing.T) {
	rc, err := decode.Decode(decode.Gzip, bytes.NewReader(gzipBytes(t, []byte("once"))))
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading decoded body: %v", err)
	}
	if string(got) != "once" {
		t.Fatalf("exp %q, got %q", "once", got)
	}

	again, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("exp nil err on drained reader, got: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("exp drained reader to yield nothing, got %q", again)
	}
}

func TestRegistry_Register(t *testing.T) {
	reg := decode.Default()

	deflate := func(r io.Reader) (io.ReadCloser, error) {
		return flate.NewReader(r), nil
	}
	if err := reg.Register("deflate", deflate); err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}

	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		t.Fatalf("creating flate writer: %v", err)
	}
	fw.Write([]byte("deflated"))
	fw.Close()

	rc, err := reg.Decode("deflate", &buf)
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}
	if got := readAll(t, rc); string(got) != "deflated" {
		t.Errorf("exp %q, got %q", "deflated", got)
	}

	if diff := cmp.Diff([]string{"br", "deflate", "gzip"}, reg.Encodings()); diff != "" {
		t.Errorf("encodings mismatch (-want +got):\n%s", diff)
	}

	// The package default registry is unaffected.
	if _, err := decode.Decode("deflate", strings.NewReader("")); !errors.Is(err, decode.ErrUnsupportedEncoding) {
		t.Errorf("exp default registry to reject deflate, got: %v", err)
	}
}

func TestRegistry_RegisterValidation(t *testing.T) {
	reg := decode.NewRegistry()
	noop := func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil }

	testCases := []struct {
		name     string
		encoding string
		decoder  decode.Decoder
		expErr   error
	}{
		{name: "empty tag", encoding: "", decoder: noop, expErr: decode.ErrReservedEncoding},
		{name: "identity tag", encoding: decode.Identity, decoder: noop, expErr: decode.ErrReservedEncoding},
		{name: "nil decoder", encoding: "zstd", decoder: nil, expErr: decode.ErrNilDecoder},
		{name: "valid", encoding: "zstd", decoder: noop},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := reg.Register(tc.encoding, tc.decoder)
			if tc.expErr == nil {
				if err != nil {
					t.Errorf("exp nil err, got: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.expErr) {
				t.Errorf("exp err %v, got: %v", tc.expErr, err)
			}
		})
	}
}

func TestRegistry_DecoderError(t *testing.T) {
	reg := decode.NewRegistry()
	boom := errors.New("boom")
	reg.Register("x-custom", func(io.Reader) (io.ReadCloser, error) { return nil, boom })

	if _, err := reg.Decode("x-custom", strings.NewReader("")); !errors.Is(err, boom) {
		t.Errorf("exp wrapped decoder error, got: %v", err)
	}
}

type readFunc func(p []byte) (int, error)

func (f readFunc) Read(p []byte) (int, error) { return f(p) }
