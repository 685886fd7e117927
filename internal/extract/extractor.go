package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/law-makers/pricecrawl/internal/diag"
	"github.com/law-makers/pricecrawl/internal/document"
	"github.com/law-makers/pricecrawl/internal/normalize"
	"github.com/law-makers/pricecrawl/pkg/models"
)

// Extractor applies schemas to documents. It holds no per-document state
// and is safe for concurrent use.
type Extractor struct {
	source string
	sink   diag.Sink
	now    func() time.Time
}

// New creates an Extractor that stamps records with source
func New(source string, sink diag.Sink) *Extractor {
	if sink == nil {
		sink = diag.Nop
	}
	return &Extractor{source: source, sink: sink, now: time.Now}
}

// WithClock overrides the record timestamp source
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// Extract builds one record from doc. A missing required field fails the
// whole extraction with *FieldExtractionError and no record.
func (e *Extractor) Extract(doc *document.Document, schema *Schema) (*models.ProductRecord, error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}
	if schema == nil {
		return nil, errors.New("nil schema")
	}

	rec := models.NewProductRecord(e.source, e.now())

	for _, f := range schema.fields {
		post := f.Post
		if post == nil {
			post = Raw
		}

		v, idx, ok := resolve(doc, f.Locators, post)
		if !ok {
			if f.Required {
				diag.Emit(e.sink, diag.Debug, "field.required_missing", diag.F{
					"field": f.Name,
					"url":   doc.URL,
				})
				return nil, &FieldExtractionError{Field: f.Name}
			}
			continue
		}

		rec.Fields[f.Name] = v
		diag.Emit(e.sink, diag.Debug, "field.resolved", diag.F{
			"field":   f.Name,
			"locator": idx,
			"kind":    f.Locators[idx].Kind.String(),
		})
	}

	deriveDiscount(rec)
	if schema.deriveBrand {
		deriveBrand(rec)
	}

	return rec, nil
}

func deriveDiscount(rec *models.ProductRecord) {
	mrp, ok := rec.Float(FieldMRP)
	if !ok {
		return
	}
	selling, ok := rec.Float(FieldSellingPrice)
	if !ok {
		return
	}
	rec.Fields[FieldDiscount] = normalize.DiscountAmount(mrp, selling)
	rec.Fields[FieldDiscountPercent] = normalize.DiscountPercent(mrp, selling)
}

func deriveBrand(rec *models.ProductRecord) {
	if _, ok := rec.Get(FieldBrand); ok {
		return
	}
	title, ok := rec.String(FieldTitle)
	if !ok {
		return
	}
	words := strings.Fields(title)
	if len(words) == 0 {
		return
	}
	rec.Fields[FieldBrand] = words[0]
	rec.LowConfidence = append(rec.LowConfidence, FieldBrand)
}

// ExtractList splits a listing document into items and extracts each one.
// Items lacking a required field are skipped and reported to the sink; an
// empty listing yields an empty, non-nil slice.
func (e *Extractor) ExtractList(doc *document.Document, listing *Listing) ([]*models.ProductRecord, error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}
	if listing == nil || listing.Schema == nil {
		return nil, errors.New("listing has no item schema")
	}

	items := e.items(doc, listing)
	records := make([]*models.ProductRecord, 0, len(items))

	for i, item := range items {
		rec, err := e.Extract(item, listing.Schema)
		if err != nil {
			var fe *FieldExtractionError
			if errors.As(err, &fe) {
				diag.Emit(e.sink, diag.Warn, "item.skipped", diag.F{
					"index": i,
					"field": fe.Field,
					"url":   doc.URL,
				})
				continue
			}
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		records = append(records, rec)
	}

	diag.Emit(e.sink, diag.Debug, "listing.extracted", diag.F{
		"url":     doc.URL,
		"items":   len(items),
		"records": len(records),
	})
	return records, nil
}

func (e *Extractor) items(doc *document.Document, listing *Listing) []*document.Document {
	if listing.ItemsPath != "" {
		if v, ok := doc.Lookup(listing.ItemsPath); ok {
			if arr, ok := v.([]any); ok && len(arr) > 0 {
				out := make([]*document.Document, 0, len(arr))
				for _, el := range arr {
					out = append(out, doc.FromData(el))
				}
				return out
			}
		}
	}

	if listing.ItemSelector == "" || doc.Root == nil {
		return nil
	}
	sel := doc.Root.Find(listing.ItemSelector)
	out := make([]*document.Document, 0, sel.Length())
	for i := range sel.Nodes {
		out = append(out, doc.Sub(sel.Eq(i)))
	}
	return out
}
