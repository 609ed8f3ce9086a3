package ingest

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LoadPDFText returns the plain text of every page joined by newlines.
// Pages without extractable text contribute an empty line.
func LoadPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF at %s: %T: %w", path, err, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read PDF at %s: page %d: %T: %w", path, pageNum, err, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}
