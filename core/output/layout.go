// Package output owns the on-disk layout of a bindery run.
// For a book named foo under root dir out/, the layout is:
//
//	out/foo/page-001.jpg   fetched pages (the resume cache)
//	out/foo/foo.html       optional snapshot dump
//	out/foo.pdf            the assembled document
//	out/foo.report.json    optional run report
//
// Page indices are zero-padded to a fixed width of three digits so that a
// plain lexicographic listing of the book directory yields page order.
package output

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// pageIndexWidth is the fixed zero-pad width of page numbers in filenames.
// Lexicographic filename order must equal numeric page order, which holds
// for books of up to 999 pages.
const pageIndexWidth = 3

// Layout resolves paths for one output root.
type Layout struct {
	Root string
}

// New creates a Layout rooted at root, creating the directory if needed.
// If root is empty, it defaults to the current working directory.
func New(root string) (*Layout, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		root = wd
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &Layout{Root: root}, nil
}

// BookDir returns the directory holding one book's page files.
func (l *Layout) BookDir(book string) string {
	return filepath.Join(l.Root, book)
}

// EnsureBookDir creates the book directory if it does not exist.
func (l *Layout) EnsureBookDir(book string) error {
	if err := os.MkdirAll(l.BookDir(book), 0755); err != nil {
		return fmt.Errorf("creating book directory: %w", err)
	}
	return nil
}

// PagePath returns the destination path for one page image.
func (l *Layout) PagePath(book string, index int, ext string) string {
	name := fmt.Sprintf("page-%0*d%s", pageIndexWidth, index, ext)
	return filepath.Join(l.BookDir(book), name)
}

// DocumentPath returns the path of the assembled PDF for a book.
func (l *Layout) DocumentPath(book string) string {
	return filepath.Join(l.Root, book+".pdf")
}

// SnapshotPath returns the path of the optional snapshot dump for a book.
func (l *Layout) SnapshotPath(book string) string {
	return filepath.Join(l.BookDir(book), book+".html")
}

// ReportPath returns the path of the optional JSON run report for a book.
func (l *Layout) ReportPath(book string) string {
	return filepath.Join(l.Root, book+".report.json")
}

// ExtForURL derives the page file extension from a page image URL.
// Unknown or missing extensions default to .jpg, which is what the readers
// serve in practice.
func ExtForURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ".jpg"
	}
	switch ext := strings.ToLower(path.Ext(parsed.Path)); ext {
	case ".jpg", ".jpeg", ".png":
		return ext
	}
	return ".jpg"
}

// SanitizeName makes a book name safe to use as a file name component.
// Alphanumerics, dash and underscore pass through; everything else becomes
// an underscore.
func SanitizeName(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '-' || ch == '_' {
			b.WriteRune(ch)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
