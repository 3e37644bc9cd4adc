package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
)

// ErrClosed is returned when attempting to use a closed [Browser].
var ErrClosed = errors.New("snapshot: browser is closed")

// Browser captures reader documents with a headless Chrome instance.
//
// A Browser manages one browser process that is reused across snapshots;
// each snapshot runs in its own tab. It is safe for concurrent use.
//
// Call [Browser.Close] when the Browser is no longer needed to release
// browser resources.
type Browser struct {
	cfg           browserConfig
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewBrowser creates a Browser with the given options.
//
// It starts a headless browser in the background. The caller must call
// [Browser.Close] when finished.
func NewBrowser(opts ...Option) (*Browser, error) {
	cfg := defaultBrowserConfig()
	for _, o := range opts {
		o(&cfg)
	}

	execPath := cfg.chromePath
	if execPath == "" && cfg.managed {
		path, err := resolveBrowser()
		if err != nil {
			return nil, err
		}
		execPath = path
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("headless", cfg.headless),
		chromedp.WindowSize(1920, 1080),
	)
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("snapshot: starting browser: %w", err)
	}

	return &Browser{
		cfg:           cfg,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close releases all resources held by the Browser, including the browser
// process. Close is idempotent.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.browserCancel()
	b.allocCancel()
	return nil
}

// Snapshot opens the reader at source, turns through every page so lazily
// loaded backgrounds materialize, and returns the final document HTML.
func (b *Browser) Snapshot(ctx context.Context, source string) ([]byte, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}

	if b.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.timeout)
		defer cancel()
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	defer tabCancel()

	// The tab context descends from the browser, not from the caller, so
	// cancellation and the snapshot deadline must be forwarded by hand.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	var pageCount int
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(source),
		chromedp.WaitReady(b.cfg.readySelector, chromedp.ByQuery),
		chromedp.Evaluate(b.cfg.pageCountExpr, &pageCount),
	); err != nil {
		return nil, fmt.Errorf("snapshot: opening reader %s: %w", source, err)
	}

	for i := 1; i <= pageCount; i++ {
		if err := chromedp.Run(tabCtx,
			chromedp.EvaluateAsDevTools(fmt.Sprintf(b.cfg.pagerExpr, i), nil),
			chromedp.Sleep(b.cfg.pageDelay),
		); err != nil {
			return nil, fmt.Errorf("snapshot: turning to page %d: %w", i, err)
		}
	}

	var html string
	if err := chromedp.Run(tabCtx,
		chromedp.Sleep(b.cfg.settleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("snapshot: capturing document: %w", err)
	}
	return []byte(html), nil
}

func (b *Browser) checkClosed() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}
