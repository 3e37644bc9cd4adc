package core

import "errors"

// Sentinel errors for the book-level and page-level conditions the pipeline
// distinguishes. Wrap them with fmt.Errorf("...: %w", err) to add context
// and match with errors.Is.
var (
	// ErrNoReferences means extraction yielded zero page references.
	// Book-level: the book is skipped, a batch continues.
	ErrNoReferences = errors.New("bindery: no page references found")

	// ErrMalformedReference means a single reference could not be
	// normalized to an absolute URL. Page-level: that page is skipped.
	ErrMalformedReference = errors.New("bindery: malformed page reference")

	// ErrEmptyPageSet means no eligible page images exist for assembly.
	// Book-level: no output document is written, a batch continues.
	ErrEmptyPageSet = errors.New("bindery: no page images to assemble")
)
