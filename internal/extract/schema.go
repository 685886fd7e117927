package extract

import (
	"errors"
	"fmt"
)

// Canonical field names
const (
	FieldTitle           = "title"
	FieldBrand           = "brand"
	FieldMRP             = "mrp"
	FieldSellingPrice    = "sellingPrice"
	FieldDiscount        = "discount"
	FieldDiscountPercent = "discountPercent"
	FieldImages          = "images"
	FieldDescription     = "description"
	FieldAttributes      = "attributes"
	FieldURL             = "url"
	FieldRating          = "rating"
)

// FieldSpec describes how to derive one field. Locators are tried in order.
type FieldSpec struct {
	Name     string
	Locators []Locator
	Post     Post
	Required bool
}

// Schema is an ordered, immutable set of field specs unique by name
type Schema struct {
	fields      []FieldSpec
	deriveBrand bool
}

// Option configures a Schema
type Option func(*Schema)

// DeriveBrand fills a missing brand from the title's leading word and marks
// it low-confidence.
func DeriveBrand() Option {
	return func(s *Schema) { s.deriveBrand = true }
}

// NewSchema validates fields and builds a Schema
func NewSchema(fields []FieldSpec, opts ...Option) (*Schema, error) {
	if len(fields) == 0 {
		return nil, errors.New("schema has no fields")
	}

	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field %d has no name", i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		if len(f.Locators) == 0 {
			return nil, fmt.Errorf("field %q has no locators", f.Name)
		}
		for j, loc := range f.Locators {
			if loc.Kind == KindPattern && loc.Pattern == nil {
				return nil, fmt.Errorf("field %q locator %d has no pattern", f.Name, j)
			}
			if loc.Kind == KindStructured && loc.Path == "" {
				return nil, fmt.Errorf("field %q locator %d has no path", f.Name, j)
			}
		}
		seen[f.Name] = true
	}

	s := &Schema{fields: append([]FieldSpec(nil), fields...)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustSchema is NewSchema that panics, for package-level site tables
func MustSchema(fields []FieldSpec, opts ...Option) *Schema {
	s, err := NewSchema(fields, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns a copy of the ordered field specs
func (s *Schema) Fields() []FieldSpec {
	return append([]FieldSpec(nil), s.fields...)
}

// Field looks up a field by name
func (s *Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Listing describes how to split a listing page into items.
// ItemsPath (embedded JSON array) is tried before ItemSelector (DOM nodes).
type Listing struct {
	ItemSelector string
	ItemsPath    string
	Schema       *Schema
}
