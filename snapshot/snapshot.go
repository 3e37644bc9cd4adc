// Package snapshot captures reader documents as raw HTML bytes.
//
// Web-book readers load page backgrounds lazily, so a plain HTTP GET of the
// reader URL yields a document with no page images. The [Browser] provider
// drives a headless Chrome through every page before capturing the document;
// the [File] provider replays a capture saved on an earlier run.
package snapshot

import (
	"context"
	"fmt"
	"os"
)

// File reads a previously saved snapshot from disk. The source argument is
// the file path.
type File struct{}

// NewFile creates a File provider.
func NewFile() *File {
	return &File{}
}

// Snapshot returns the contents of the file at source.
func (File) Snapshot(ctx context.Context, source string) ([]byte, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("snapshot: reading %s: %w", source, err)
	}
	return data, nil
}
