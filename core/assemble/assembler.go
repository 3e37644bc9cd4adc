// Package assemble implements the Assembler interface. Assemblers bind the
// page images of one book directory into a single PDF document.
//
// Page order is the lexical order of file names, which matches page order
// because fetched pages carry zero-padded indices. Files whose extension is
// not an eligible image type are ignored, so a book directory may also hold
// the saved source snapshot.
package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/alaroche/bindery/core"
)

// eligibleExtensions lists the image types accepted as pages.
var eligibleExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// eligiblePages returns the full paths of the page images in dir, in lexical
// file name order. os.ReadDir guarantees the sorted listing.
func eligiblePages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var pages []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !eligibleExtensions[ext] {
			continue
		}
		pages = append(pages, filepath.Join(dir, entry.Name()))
	}
	return pages, nil
}

// PDFCPU assembles pages with the pdfcpu import pipeline. It is the default
// engine: each image becomes one page sized to the image dimensions.
type PDFCPU struct {
	conf *model.Configuration
}

// NewPDFCPU creates the default PDF engine.
func NewPDFCPU() *PDFCPU {
	return &PDFCPU{conf: model.NewDefaultConfiguration()}
}

// Assemble imports every eligible page image in pagesDir into a PDF at
// outPath and returns the page count.
func (a *PDFCPU) Assemble(pagesDir, outPath string) (int, error) {
	pages, err := eligiblePages(pagesDir)
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		return 0, fmt.Errorf("%w in %s", core.ErrEmptyPageSet, pagesDir)
	}

	if err := api.ImportImagesFile(pages, outPath, nil, a.conf); err != nil {
		return 0, fmt.Errorf("importing %d page images: %w", len(pages), err)
	}
	return len(pages), nil
}
