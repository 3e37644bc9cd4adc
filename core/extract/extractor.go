// Package extract implements the Extractor interface.
// It locates per-page background-image references in reader snapshots.
//
// Two snapshot formats exist in the wild and each gets its own extractor:
//
//   - ByteScan works on the raw bytes of a snapshot saved straight from the
//     browser, where the style sheet is inlined and quotes are entity-escaped.
//     It yields references in document order.
//   - Structured parses the markup and reads the style attribute of each
//     div.page element. Identical URLs across elements are deduplicated and
//     the result is ordered by URL string, since element order is not a
//     reliable page order in this format.
package extract

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alaroche/bindery/core"
)

// Byte markers delimiting a page image URL in a saved snapshot. The URL
// between them is protocol-relative with the leading "//" folded into the
// start marker.
const (
	markerStart = `background-image: url(&quot;//`
	markerEnd   = `&quot;`
)

// ByteScan extracts page references by scanning raw snapshot bytes for the
// fixed background-image marker.
type ByteScan struct{}

// NewByteScan creates a ByteScan extractor.
func NewByteScan() *ByteScan {
	return &ByteScan{}
}

// Extract scans doc linearly and yields one reference per marker occurrence,
// in document order, without deduplication. A start marker with no matching
// end marker terminates the scan. Zero matches is not an error.
func (e *ByteScan) Extract(doc []byte) ([]core.PageReference, error) {
	var refs []core.PageReference

	start := bytes.Index(doc, []byte(markerStart))
	for start != -1 {
		start += len(markerStart)
		rel := bytes.Index(doc[start:], []byte(markerEnd))
		if rel == -1 {
			break
		}
		end := start + rel

		refs = append(refs, core.PageReference{
			RawURL:         "//" + string(doc[start:end]),
			DiscoveryOrder: len(refs) + 1,
		})

		next := bytes.Index(doc[end:], []byte(markerStart))
		if next == -1 {
			break
		}
		start = end + next
	}

	return refs, nil
}

// Structured extracts page references from parsed markup, one div.page
// element per page.
type Structured struct{}

// NewStructured creates a Structured extractor.
func NewStructured() *Structured {
	return &Structured{}
}

// Extract parses doc and collects the url(...) value from the style
// attribute of every div.page element that declares a background image.
// Duplicate URLs count once; the result is sorted by URL value before
// discovery order is assigned. Zero matches is not an error.
func (e *Structured) Extract(doc []byte) ([]core.PageReference, error) {
	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	seen := make(map[string]bool)
	var urls []string

	gq.Find("div.page").Each(func(_ int, s *goquery.Selection) {
		style, ok := s.Attr("style")
		if !ok || !strings.Contains(style, "background-image") {
			return
		}
		raw, ok := styleImageURL(style)
		if !ok || seen[raw] {
			return
		}
		seen[raw] = true
		urls = append(urls, raw)
	})

	sort.Strings(urls)

	refs := make([]core.PageReference, 0, len(urls))
	for i, u := range urls {
		refs = append(refs, core.PageReference{RawURL: u, DiscoveryOrder: i + 1})
	}
	return refs, nil
}

// styleImageURL pulls the value inside the first url(...) of a style
// attribute, trimming optional single or double quotes.
func styleImageURL(style string) (string, bool) {
	start := strings.Index(style, "url(")
	if start == -1 {
		return "", false
	}
	start += len("url(")

	end := strings.Index(style[start:], ")")
	if end == -1 {
		return "", false
	}

	raw := strings.Trim(style[start:start+end], `'"`)
	if raw == "" {
		return "", false
	}
	return raw, true
}
