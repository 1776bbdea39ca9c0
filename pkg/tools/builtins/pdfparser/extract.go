package pdfparser

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Metadata holds document-level fields from the PDF info dictionary.
type Metadata struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	TotalPages int    `json:"total_pages"`
}

// Page holds the extracted text of a single page.
type Page struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// Payload is the structured output of one extraction.
type Payload struct {
	Metadata Metadata `json:"metadata"`
	Pages    []Page   `json:"pages"`
}

// extract reads the PDF at path and returns the text of the requested
// pages. An empty pageNumbers selects all pages up to maxPages. Numbers
// outside the document are dropped.
//
// The underlying parser panics on malformed input, so failures are
// converted to errors here.
func extract(path string, pageNumbers []int, maxPages int) (payload Payload, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed PDF: %v", rec)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return Payload{}, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()

	if len(pageNumbers) == 0 {
		n := min(total, maxPages)
		pageNumbers = make([]int, 0, n)
		for p := 1; p <= n; p++ {
			pageNumbers = append(pageNumbers, p)
		}
	}

	payload = Payload{
		Metadata: Metadata{
			Title:      infoText(reader, "Title"),
			Author:     infoText(reader, "Author"),
			TotalPages: total,
		},
		Pages: []Page{},
	}

	for _, n := range pageNumbers {
		if n < 1 || n > total {
			continue
		}
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return Payload{}, fmt.Errorf("extracting page %d: %w", n, err)
		}
		payload.Pages = append(payload.Pages, Page{PageNumber: n, Text: text})
	}

	return payload, nil
}

// infoText reads a text field from the document's info dictionary.
func infoText(reader *pdf.Reader, key string) string {
	v := reader.Trailer().Key("Info").Key(key)
	if v.Kind() != pdf.String {
		return ""
	}
	return v.Text()
}
