package assemble

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/alaroche/bindery/core"
)

// GoFPDF assembles pages with the gofpdf document builder. It draws each
// image onto its own page at native size, using points so that one image
// pixel maps to one document point.
type GoFPDF struct{}

// NewGoFPDF creates the gofpdf engine.
func NewGoFPDF() *GoFPDF {
	return &GoFPDF{}
}

// Assemble draws every eligible page image in pagesDir onto its own PDF page
// at outPath and returns the page count.
func (a *GoFPDF) Assemble(pagesDir, outPath string) (int, error) {
	pages, err := eligiblePages(pagesDir)
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		return 0, fmt.Errorf("%w in %s", core.ErrEmptyPageSet, pagesDir)
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	opts := gofpdf.ImageOptions{ImageType: "", ReadDpi: true}
	for _, page := range pages {
		info := pdf.RegisterImageOptions(page, opts)
		if pdf.Err() {
			return 0, fmt.Errorf("reading page image %s: %w", page, pdf.Error())
		}
		w, h := info.Extent()
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		pdf.ImageOptions(page, 0, 0, w, h, false, opts, 0, "")
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return 0, fmt.Errorf("writing %s: %w", outPath, err)
	}
	return len(pages), nil
}
