package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// PageFailure records one page that could not be resolved or fetched.
// Index is the page index for fetch failures and the discovery order for
// references that never resolved to a page.
type PageFailure struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Result summarizes one book run. It is returned by [Pipeline.Run] and,
// when report writing is enabled, serialized next to the book directory.
type Result struct {
	Book        string        `json:"book"`
	Source      string        `json:"source"`
	State       State         `json:"state"`
	Pages       int           `json:"pages"`
	Fetched     int           `json:"fetched"`
	Skipped     int           `json:"skipped"`
	Failures    []PageFailure `json:"failures,omitempty"`
	Document    string        `json:"document,omitempty"`
	GeneratedAt string        `json:"generated_at,omitempty"`
}

// BookFailure records one book that aborted during a batch run.
type BookFailure struct {
	Book   string `json:"book"`
	Reason string `json:"reason"`
}

// BatchResult collects the per-book results of a batch run. Books holds one
// entry per attempted book, aborted ones included.
type BatchResult struct {
	Books    []*Result     `json:"books"`
	Failures []BookFailure `json:"failures,omitempty"`
}

// Succeeded returns the number of books that reached the Done state.
func (b *BatchResult) Succeeded() int {
	n := 0
	for _, r := range b.Books {
		if r.State == StateDone {
			n++
		}
	}
	return n
}

// writeReport serializes res to path, stamping the generation time.
func writeReport(path string, res *Result) error {
	res.GeneratedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
