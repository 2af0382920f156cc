// Package preflight inspects uploads before they are handed to OCR. A PDF
// with an embedded text layer only needs plain detection; everything else
// goes through table and form analysis.
package preflight

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// sampledPages bounds how much of a large scan book is parsed up front.
const sampledPages = 5

type PDFInspector struct{}

func NewPDFInspector() *PDFInspector {
	return &PDFInspector{}
}

func (i *PDFInspector) Inspect(ctx context.Context, filename string, data io.ReaderAt, size int64) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		// Image uploads never carry a text layer.
		return 0, false, nil
	}

	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return 0, false, err
	}

	pages := reader.NumPage()
	for n := 1; n <= pages && n <= sampledPages; n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			return pages, true, nil
		}
	}
	return pages, false, nil
}
