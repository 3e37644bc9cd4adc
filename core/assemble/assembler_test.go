package assemble

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/alaroche/bindery/core"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(40 * x), G: uint8(40 * y), B: 200, A: 255})
		}
	}
	return img
}

func writeJPEG(t *testing.T, dir, name string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("creating %s: %v", name, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, testImage(6, 8), nil); err != nil {
		t.Fatalf("encoding %s: %v", name, err)
	}
}

func writePNG(t *testing.T, dir, name string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("creating %s: %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, testImage(5, 7)); err != nil {
		t.Fatalf("encoding %s: %v", name, err)
	}
}

func pageCount(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()
	n, err := api.PageCount(f, nil)
	if err != nil {
		t.Fatalf("counting pages in %s: %v", path, err)
	}
	return n
}

func TestEligiblePages(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, dir, "page-002.jpg")
	writePNG(t, dir, "page-010.png")
	writeJPEG(t, dir, "page-001.jpeg")
	if err := os.WriteFile(filepath.Join(dir, "mybook.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "page-000.jpg"), 0o755); err != nil {
		t.Fatal(err)
	}

	pages, err := eligiblePages(dir)
	if err != nil {
		t.Fatalf("eligiblePages() error: %v", err)
	}

	want := []string{
		filepath.Join(dir, "page-001.jpeg"),
		filepath.Join(dir, "page-002.jpg"),
		filepath.Join(dir, "page-010.png"),
	}
	if len(pages) != len(want) {
		t.Fatalf("pages = %v, want %v", pages, want)
	}
	for i := range pages {
		if pages[i] != want[i] {
			t.Errorf("pages[%d] = %q, want %q", i, pages[i], want[i])
		}
	}
}

// Ordering is strictly lexical. Zero-padded page names keep it numeric;
// unpadded names do not, which is why the fetch layout pads indices.
func TestEligiblePagesLexicalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-1.jpg", "page-10.jpg", "page-2.jpg"} {
		writeJPEG(t, dir, name)
	}

	pages, err := eligiblePages(dir)
	if err != nil {
		t.Fatalf("eligiblePages() error: %v", err)
	}

	want := []string{"page-1.jpg", "page-10.jpg", "page-2.jpg"}
	for i := range pages {
		if filepath.Base(pages[i]) != want[i] {
			t.Errorf("pages[%d] = %q, want %q", i, filepath.Base(pages[i]), want[i])
		}
	}
}

func TestAssembleBindsPages(t *testing.T) {
	engines := []struct {
		name string
		eng  core.Assembler
	}{
		{"pdfcpu", NewPDFCPU()},
		{"gofpdf", NewGoFPDF()},
	}

	for _, tc := range engines {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeJPEG(t, dir, "page-001.jpg")
			writePNG(t, dir, "page-002.png")
			writeJPEG(t, dir, "page-003.jpg")
			out := filepath.Join(t.TempDir(), "book.pdf")

			n, err := tc.eng.Assemble(dir, out)
			if err != nil {
				t.Fatalf("Assemble() error: %v", err)
			}
			if n != 3 {
				t.Errorf("Assemble() = %d pages, want 3", n)
			}
			if got := pageCount(t, out); got != 3 {
				t.Errorf("document has %d pages, want 3", got)
			}
		})
	}
}

func TestAssembleEmptyPageSet(t *testing.T) {
	engines := []struct {
		name string
		eng  core.Assembler
	}{
		{"pdfcpu", NewPDFCPU()},
		{"gofpdf", NewGoFPDF()},
	}

	for _, tc := range engines {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "mybook.html"), []byte("<html></html>"), 0o644); err != nil {
				t.Fatal(err)
			}
			out := filepath.Join(t.TempDir(), "book.pdf")

			_, err := tc.eng.Assemble(dir, out)
			if !errors.Is(err, core.ErrEmptyPageSet) {
				t.Fatalf("Assemble() error = %v, want ErrEmptyPageSet", err)
			}
			if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("document %s written despite empty page set", out)
			}
		})
	}
}

func TestAssembleMissingDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "book.pdf")
	if _, err := NewPDFCPU().Assemble(filepath.Join(t.TempDir(), "absent"), out); err == nil {
		t.Fatal("Assemble() = nil, want error for missing directory")
	}
}
