// Package normalize implements the Normalizer interface.
// It turns the raw, possibly protocol-relative references produced by
// extraction into absolute URLs the fetcher can use.
package normalize

import (
	"fmt"
	"strings"

	"github.com/alaroche/bindery/core"
)

// SchemeNormalizer resolves protocol-relative references against https.
type SchemeNormalizer struct{}

// New creates a SchemeNormalizer.
func New() *SchemeNormalizer {
	return &SchemeNormalizer{}
}

// Normalize maps a raw reference to an absolute URL. Protocol-relative
// references get the https scheme, absolute http(s) URLs pass through
// unchanged, and anything else fails with ErrMalformedReference.
func (n *SchemeNormalizer) Normalize(raw string) (string, error) {
	switch {
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw, nil
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrMalformedReference, raw)
	}
}
