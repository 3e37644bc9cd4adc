// Package fetch implements the Fetcher interface.
// It downloads page images idempotently: a destination that already exists
// is never re-fetched, which is what makes interrupted runs resumable.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = 1 * time.Second
	defaultUserAgent  = "bindery/1.0 (https://github.com/alaroche/bindery)"
)

// HTTPFetcher downloads page images over HTTP.
type HTTPFetcher struct {
	client     *http.Client
	userAgent  string
	attempts   uint
	retryDelay time.Duration
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout sets the per-request timeout. Defaults to 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.client.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithAttempts sets how many times a failing download is tried in total.
// Defaults to 3.
func WithAttempts(n uint) Option {
	return func(f *HTTPFetcher) {
		f.attempts = n
	}
}

// WithRetryDelay sets the base delay between attempts. Defaults to 1 second.
func WithRetryDelay(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.retryDelay = d
	}
}

// New creates an HTTPFetcher with sensible defaults.
func New(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:     &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
	}
	for _, o := range opts {
		o(f)
	}
	if f.attempts == 0 {
		f.attempts = 1
	}
	return f
}

// Fetch downloads url into dest. If dest already exists the call returns
// (false, nil) without any network access. The body is streamed to a
// temporary file in dest's directory and renamed into place on success, so
// a failed transfer never leaves a partial file at dest.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, dest string) (bool, error) {
	if _, err := os.Stat(dest); err == nil {
		return false, nil
	}

	err := retry.Do(
		func() error { return f.download(ctx, url, dest) },
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return false, fmt.Errorf("fetching %s: %w", url, err)
	}
	return true, nil
}

// download performs one transfer attempt.
func (f *HTTPFetcher) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
