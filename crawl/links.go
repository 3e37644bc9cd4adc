package crawl

// LinkSet collects URLs in insertion order with deduplication. Catalog pages
// repeat the same reader link for cover image and title, so only the first
// occurrence counts.
type LinkSet struct {
	items []string
	seen  map[string]bool
}

// NewLinkSet creates an empty LinkSet.
func NewLinkSet() *LinkSet {
	return &LinkSet{
		seen: make(map[string]bool),
	}
}

// Add records a URL if it hasn't been seen before.
func (s *LinkSet) Add(url string) {
	if s.seen[url] {
		return
	}
	s.seen[url] = true
	s.items = append(s.items, url)
}

// Len returns the number of unique URLs seen.
func (s *LinkSet) Len() int {
	return len(s.items)
}

// All returns the collected URLs in insertion order.
func (s *LinkSet) All() []string {
	return s.items
}
