package fetch

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrLengthMismatch means an identity body ended before or after its
	// declared Content-Length.
	ErrLengthMismatch = errors.New("content length mismatch")
	// ErrChecksumMismatch means the decoded bytes did not hash to the
	// expected digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrDownloadCancelled means ctx ended while the body was being saved.
	ErrDownloadCancelled = errors.New("download cancelled")
)

// DownloadError is returned when a successful response could not be
// saved. Status and transport failures are returned as they are.
type DownloadError struct {
	URL  string
	Path string
	// Encoding is the Content-Encoding the body was decoded from.
	Encoding string
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("saving %s to %s: %v", e.URL, e.Path, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// DownloadOption configures [Fetcher.Download].
type DownloadOption func(*downloadOpts) error
type downloadOpts struct {
	digest       hash.Hash
	expected     string
	progress     time.Duration
	skipExisting bool
}

// WithChecksum hashes the decoded bytes with h and compares the result to
// the hex-encoded expected digest, e.g. WithChecksum(sha256.New(), "9f86d0...").
func WithChecksum(h hash.Hash, expected string) DownloadOption {
	return func(o *downloadOpts) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}
		if _, err := hex.DecodeString(expected); err != nil || expected == "" {
			return fmt.Errorf("expected checksum %q is not a hex digest", expected)
		}
		o.digest = h
		o.expected = strings.ToLower(expected)
		return nil
	}
}

// WithProgress logs the number of decoded bytes written every interval.
func WithProgress(every time.Duration) DownloadOption {
	return func(o *downloadOpts) error {
		if every <= 0 {
			return errors.New("progress interval must be positive")
		}
		o.progress = every
		return nil
	}
}

// WithSkipExisting returns before sending any request when destPath
// already exists.
func WithSkipExisting() DownloadOption {
	return func(o *downloadOpts) error {
		o.skipExisting = true
		return nil
	}
}

// Download fetches address and saves the decoded body to destPath.
// The body is written to a temporary file in the same directory and only
// renamed to destPath once it is complete and verified, so destPath never
// holds a partial body.
func (f *Fetcher) Download(ctx context.Context, address string, opts Options, destPath string, dlOpts ...DownloadOption) error {
	if destPath == "" {
		return errors.New("destPath must not be empty")
	}

	var o downloadOpts
	for _, opt := range dlOpts {
		if err := opt(&o); err != nil {
			return fmt.Errorf("applying download option: %w", err)
		}
	}

	if o.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			f.logger.Debug("download skipped, file exists", "url", address, "path", destPath)
			return nil
		}
	}

	resp, err := f.Stream(ctx, address, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Close(); err != nil {
			f.logger.Error("failed to close response body", "error", err)
		}
	}()

	if err := f.save(ctx, resp, destPath, o); err != nil {
		return &DownloadError{
			URL:      address,
			Path:     destPath,
			Encoding: resp.ContentEncoding(),
			Err:      err,
		}
	}

	return nil
}

func (f *Fetcher) save(ctx context.Context, resp *Response, destPath string, o downloadOpts) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".httpfetch-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if cerr := tmp.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			f.logger.Error("failed to close temp file", "error", cerr)
		}
		if rerr := os.Remove(tmp.Name()); rerr != nil {
			f.logger.Error("failed to remove temp file", "error", rerr)
		}
	}()

	counter := &byteCounter{w: tmp}
	if o.digest != nil {
		counter.w = io.MultiWriter(tmp, o.digest)
	}

	if o.progress > 0 {
		stop := f.reportProgress(counter, resp, destPath, o.progress)
		defer stop()
	}

	if _, err := io.Copy(counter, resp.Body); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrDownloadCancelled, ctxErr)
		}
		return fmt.Errorf("copying body: %w", err)
	}

	// ContentLength is only known for identity bodies.
	if n := counter.n.Load(); resp.ContentLength >= 0 && n != resp.ContentLength {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrLengthMismatch, resp.ContentLength, n)
	}

	if o.digest != nil {
		if got := hex.EncodeToString(o.digest.Sum(nil)); got != o.expected {
			return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, o.expected, got)
		}
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// byteCounter counts the bytes written through it. n may be read while
// writes are in progress.
type byteCounter struct {
	w io.Writer
	n atomic.Int64
}

func (c *byteCounter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

// reportProgress logs the bytes counted by c every interval until the
// returned stop func is called, which also logs a final record.
func (f *Fetcher) reportProgress(c *byteCounter, resp *Response, path string, every time.Duration) (stop func()) {
	log := f.logger.With("path", path, "content_encoding", resp.ContentEncoding())
	start := time.Now()
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Go(func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				log.Info("download progress", progressAttrs(c.n.Load(), resp.ContentLength, time.Since(start))...)
			}
		}
	})

	return func() {
		close(done)
		wg.Wait()
		log.Info("download finished", progressAttrs(c.n.Load(), resp.ContentLength, time.Since(start))...)
	}
}

// progressAttrs reports a percentage only when the decoded size is known.
func progressAttrs(written, total int64, elapsed time.Duration) []any {
	attrs := []any{
		"written", written,
		"elapsed", elapsed.Round(time.Millisecond),
	}
	if total > 0 {
		attrs = append(attrs,
			"total", total,
			"percent", fmt.Sprintf("%.1f", float64(written)/float64(total)*100),
		)
	}

	return attrs
}
