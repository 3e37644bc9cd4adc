package snapshot

import "time"

// browserConfig holds internal configuration for a Browser.
//
// The selector and script defaults target the Milibris multi-viewer, the
// reader the tool was originally written against. Other readers are served
// by overriding them.
type browserConfig struct {
	chromePath    string
	managed       bool
	noSandbox     bool
	headless      string
	timeout       time.Duration
	pageDelay     time.Duration
	settleDelay   time.Duration
	readySelector string
	pageCountExpr string
	pagerExpr     string
}

func defaultBrowserConfig() browserConfig {
	return browserConfig{
		headless:      "new",
		timeout:       3 * time.Minute,
		pageDelay:     time.Second,
		settleDelay:   5 * time.Second,
		readySelector: ".currentPage",
		pageCountExpr: `(() => { const el = document.querySelector(".num-last"); return el ? parseInt(el.textContent.trim(), 10) || 0 : 0; })()`,
		pagerExpr:     "Milibris.MultiViewer.reader.controller.goToPage(%d);",
	}
}

// Option configures a [Browser].
type Option func(*browserConfig)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the library searches standard locations automatically.
func WithChromePath(path string) Option {
	return func(c *browserConfig) {
		c.chromePath = path
	}
}

// WithManagedBrowser downloads and caches a compatible Chromium build when
// no executable path is set. Useful on hosts without a system browser.
func WithManagedBrowser() Option {
	return func(c *browserConfig) {
		c.managed = true
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *browserConfig) {
		c.noSandbox = true
	}
}

// WithTimeout sets the maximum duration for a single snapshot, covering
// navigation, paging, and capture. Defaults to 3 minutes. A zero or
// negative value disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *browserConfig) {
		c.timeout = d
	}
}

// WithPageDelay sets the pause after each page turn, giving the reader time
// to load the page background. Defaults to 1 second.
func WithPageDelay(d time.Duration) Option {
	return func(c *browserConfig) {
		c.pageDelay = d
	}
}

// WithSettleDelay sets the pause after the last page turn before the
// document is captured. Defaults to 5 seconds.
func WithSettleDelay(d time.Duration) Option {
	return func(c *browserConfig) {
		c.settleDelay = d
	}
}

// WithReadySelector sets the CSS selector that signals the reader has
// finished its initial load.
func WithReadySelector(sel string) Option {
	return func(c *browserConfig) {
		c.readySelector = sel
	}
}

// WithPageCountExpr sets the JavaScript expression that yields the number
// of pages in the open reader. It must evaluate to a number.
func WithPageCountExpr(expr string) Option {
	return func(c *browserConfig) {
		c.pageCountExpr = expr
	}
}

// WithPagerExpr sets the JavaScript statement that turns the reader to a
// given page. It must contain one %d verb for the page number.
func WithPagerExpr(expr string) Option {
	return func(c *browserConfig) {
		c.pagerExpr = expr
	}
}
