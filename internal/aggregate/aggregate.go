// Package aggregate merges per-page OCR results into one document-level
// text blob. Pure functions only; aggregation cannot fail.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ocrfield/docextract/internal/ocr"
)

// Text is the aggregated document text. Combined is always derivable from
// Pages: OK pages joined in index order, each preceded by a page marker
// when the document has more than one page.
type Text struct {
	Pages    []ocr.PageResult
	Combined string
}

const pageMarker = "--- Page %d ---"

// Join sorts a copy of results by page index and builds the combined text.
// totalPages is the physical page count of the document; the marker is
// omitted for single-page documents. Failed pages contribute nothing to
// Combined but stay in Pages with their status.
func Join(results []ocr.PageResult, totalPages int) Text {
	pages := make([]ocr.PageResult, len(results))
	copy(pages, results)
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageIndex < pages[j].PageIndex })

	var b strings.Builder
	for _, p := range pages {
		if p.Status != ocr.StatusOK {
			continue
		}
		txt := strings.TrimSpace(p.Text)
		if txt == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if totalPages > 1 {
			b.WriteString(fmt.Sprintf(pageMarker, p.PageIndex+1))
			b.WriteString("\n")
		}
		b.WriteString(txt)
	}

	return Text{Pages: pages, Combined: b.String()}
}
