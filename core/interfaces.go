// Package core defines the pipeline contracts for bindery.
// Each stage of the pipeline is a clean, testable interface.
package core

import "context"

// PageReference is a not-yet-resolved pointer to a page image, produced by
// an Extractor. RawURL may be protocol-relative (starting "//").
// DiscoveryOrder is the 1-based position in which the reference was yielded;
// it is the sole source of page ordering, since reader snapshots carry no
// page-number metadata.
type PageReference struct {
	RawURL         string
	DiscoveryOrder int
}

// ResolvedPage is a page whose URL normalized successfully. PageIndex values
// for one book form a contiguous range 1..N with no duplicates. LocalPath is
// attached once the page file exists on disk.
type ResolvedPage struct {
	URL       string
	PageIndex int
	LocalPath string
}

// Book is one paginated reader session being converted to a single PDF.
// It lives only for the duration of a pipeline run; the durable residue is
// the page files (the resume cache) and the output document.
type Book struct {
	SourceURL string
	Name      string
	Pages     []ResolvedPage
}

// Extractor locates per-page image references inside a reader snapshot and
// yields them as an ordered sequence. An empty sequence is not an error;
// callers decide how to report "nothing to do".
type Extractor interface {
	Extract(doc []byte) ([]PageReference, error)
}

// Normalizer maps a raw page reference to an absolute, fetchable URL.
// References that cannot be made absolute fail with ErrMalformedReference.
type Normalizer interface {
	Normalize(raw string) (string, error)
}

// Fetcher retrieves a page image and persists it at dest. Implementations
// must be idempotent: if dest already exists the call returns (false, nil)
// without touching the network. downloaded reports whether a network
// transfer actually happened.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) (downloaded bool, err error)
}

// Enhancer optionally transforms a fetched page image in place before
// assembly. Failures must leave the original file intact; the pipeline
// treats them as non-fatal.
type Enhancer interface {
	Enhance(ctx context.Context, path string) error
}

// Assembler packs all eligible page images in pagesDir into a single PDF at
// outPath, in sorted-filename order, and returns the page count. A directory
// with zero eligible images fails with ErrEmptyPageSet and writes nothing.
type Assembler interface {
	Assemble(pagesDir, outPath string) (pages int, err error)
}

// SnapshotProvider supplies the HTML of a fully-paginated reader session,
// either read from disk or captured from a live browser. The pipeline core
// never initiates navigation itself.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, source string) ([]byte, error)
}
