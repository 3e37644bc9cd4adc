// Package crawl discovers book reader links on a publisher catalog page.
// It keeps catalog handling separate from the per-book pipeline: the caller
// snapshots the catalog, crawl turns it into an ordered list of reader URLs.
package crawl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// FetchCatalog retrieves the catalog page at rawURL. Catalog pages render
// their links server-side, so a plain GET is enough; only readers need a
// browser.
func FetchCatalog(ctx context.Context, rawURL string) ([]byte, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Books extracts the reader links from a catalog page. A link qualifies when
// its resolved URL contains marker. Links are returned in document order,
// deduplicated by first occurrence, resolved against baseURL, and stripped of
// fragments.
func Books(doc []byte, baseURL, marker string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	set := NewLinkSet()
	gq.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}

		resolved := ResolveLink(href, base)
		if resolved == "" || !IsReaderLink(resolved, marker) {
			return
		}
		set.Add(resolved)
	})

	return set.All(), nil
}
