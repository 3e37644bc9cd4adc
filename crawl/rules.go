package crawl

import (
	"net/url"
	"strings"
)

// skipSchemes are href prefixes that never lead to a reader.
var skipSchemes = []string{"mailto:", "javascript:", "tel:", "#"}

// IsReaderLink reports whether a URL points at a book reader. The marker is
// the substring that identifies reader URLs on the publisher's site; an
// empty marker matches nothing.
func IsReaderLink(rawURL, marker string) bool {
	if marker == "" {
		return false
	}
	return strings.Contains(rawURL, marker)
}

// ResolveLink resolves a potentially relative href against a base and strips
// the fragment. It returns "" for links that cannot lead to a reader.
func ResolveLink(href string, base *url.URL) string {
	for _, prefix := range skipSchemes {
		if strings.HasPrefix(href, prefix) {
			return ""
		}
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)
	resolved.Fragment = ""
	return resolved.String()
}
