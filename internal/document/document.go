// Package document holds a parsed page: the queryable markup tree plus any
// embedded JSON found in the page's data islands.
package document

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/pricecrawl/internal/normalize"
)

// Document is one acquired page, consumed once by extraction
type Document struct {
	URL    string
	Origin string
	HTML   string

	// Root is nil for documents built from JSON alone
	Root *goquery.Selection

	// Data is the merged embedded-JSON blob, nil when the page had none
	Data any

	FetchedBy  string
	StatusCode int

	text   string
	hasTxt bool
}

// Parse builds a Document from raw markup and extracts the configured islands
func Parse(pageURL, html string, islands []Island) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	d := &Document{
		URL:    pageURL,
		Origin: normalize.Origin(pageURL),
		HTML:   html,
		Root:   gq.Selection,
	}
	d.Data = readIslands(d.Root, pageURL, islands)
	return d, nil
}

// Sub returns a document scoped to sel, used for listing items
func (d *Document) Sub(sel *goquery.Selection) *Document {
	return &Document{
		URL:        d.URL,
		Origin:     d.Origin,
		Root:       sel,
		FetchedBy:  d.FetchedBy,
		StatusCode: d.StatusCode,
	}
}

// FromData returns a document whose only content is the JSON value v
func (d *Document) FromData(v any) *Document {
	return &Document{
		URL:        d.URL,
		Origin:     d.Origin,
		Data:       v,
		FetchedBy:  d.FetchedBy,
		StatusCode: d.StatusCode,
	}
}

// Text is the whitespace-collapsed visible text of the document
func (d *Document) Text() string {
	if d.hasTxt {
		return d.text
	}
	d.hasTxt = true
	if d.Root == nil {
		return ""
	}

	root := d.Root.Clone()
	root.Find("script, style, noscript, template").Remove()
	d.text = normalize.Text(root.Text())
	return d.text
}

// Lookup reads path from the document's embedded data
func (d *Document) Lookup(path string) (any, bool) {
	if d.Data == nil {
		return nil, false
	}
	return Lookup(d.Data, path)
}
