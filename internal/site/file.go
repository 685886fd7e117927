package site

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/law-makers/pricecrawl/internal/document"
	"github.com/law-makers/pricecrawl/internal/extract"
	"gopkg.in/yaml.v3"
)

// File is the layout of a YAML site definition file
type File struct {
	Sites []SiteConfig `yaml:"sites"`
}

// SiteConfig is one site as written in YAML
type SiteConfig struct {
	Name            string            `yaml:"name"`
	Hosts           []string          `yaml:"hosts"`
	ProductPattern  string            `yaml:"product_pattern"`
	PageParam       string            `yaml:"page_param"`
	WarmUpURL       string            `yaml:"warm_up_url"`
	Islands         []document.Island `yaml:"islands"`
	Product         *SchemaConfig     `yaml:"product"`
	Listing         *ListingConfig    `yaml:"listing"`
	BlockSignatures []string          `yaml:"block_signatures"`
	MinBodyLength   int               `yaml:"min_body_length"`
	Strategies      []string          `yaml:"strategies"`
}

// SchemaConfig is an ordered list of fields
type SchemaConfig struct {
	DeriveBrand bool          `yaml:"derive_brand"`
	Fields      []FieldConfig `yaml:"fields"`
}

// ListingConfig describes how to split a listing page into items
type ListingConfig struct {
	ItemSelector string       `yaml:"item_selector"`
	ItemsPath    string       `yaml:"items_path"`
	Schema       SchemaConfig `yaml:",inline"`
}

// FieldConfig is one field with its locators in priority order
type FieldConfig struct {
	Name     string          `yaml:"name"`
	Required bool            `yaml:"required"`
	Post     string          `yaml:"post"`
	Locators []LocatorConfig `yaml:"locators"`
}

// LocatorConfig sets exactly one of CSS, Rows, Regex or JSON
type LocatorConfig struct {
	CSS       string `yaml:"css"`
	Attr      string `yaml:"attr"`
	All       bool   `yaml:"all"`
	InnerHTML bool   `yaml:"html"`

	Rows  string `yaml:"rows"`
	Key   string `yaml:"key"`
	Value string `yaml:"value"`

	Regex  string `yaml:"regex"`
	InHTML bool   `yaml:"in_html"`

	JSON string `yaml:"json"`
}

var posts = map[string]extract.Post{
	"":         extract.Text,
	"text":     extract.Text,
	"raw":      extract.Raw,
	"price":    extract.Price,
	"percent":  extract.Percent,
	"images":   extract.Images,
	"markdown": extract.Markdown,
	"list":     extract.List,
	"link":     extract.Link,
}

// LoadFile reads site definitions from a YAML file
func LoadFile(path string) ([]*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}
	return Parse(data)
}

// Parse converts YAML site definitions into sites
func Parse(data []byte) ([]*Site, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sites file: %w", err)
	}
	if len(f.Sites) == 0 {
		return nil, errors.New("sites file defines no sites")
	}

	out := make([]*Site, 0, len(f.Sites))
	for _, sc := range f.Sites {
		s, err := sc.Site()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Site converts the YAML form into a validated Site
func (c SiteConfig) Site() (*Site, error) {
	s := &Site{
		Name:            c.Name,
		Hosts:           c.Hosts,
		PageParam:       c.PageParam,
		WarmUpURL:       c.WarmUpURL,
		Islands:         c.Islands,
		BlockSignatures: c.BlockSignatures,
		MinBodyLength:   c.MinBodyLength,
		Strategies:      c.Strategies,
	}

	if c.ProductPattern != "" {
		re, err := regexp.Compile(c.ProductPattern)
		if err != nil {
			return nil, fmt.Errorf("site %s: invalid product_pattern: %w", c.Name, err)
		}
		s.ProductPattern = re
	}

	if c.Product != nil {
		schema, err := c.Product.schema()
		if err != nil {
			return nil, fmt.Errorf("site %s: product: %w", c.Name, err)
		}
		s.Product = schema
	}

	if c.Listing != nil {
		schema, err := c.Listing.Schema.schema()
		if err != nil {
			return nil, fmt.Errorf("site %s: listing: %w", c.Name, err)
		}
		s.Listing = &extract.Listing{
			ItemSelector: c.Listing.ItemSelector,
			ItemsPath:    c.Listing.ItemsPath,
			Schema:       schema,
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (c SchemaConfig) schema() (*extract.Schema, error) {
	fields := make([]extract.FieldSpec, 0, len(c.Fields))
	for _, fc := range c.Fields {
		post, ok := posts[fc.Post]
		if !ok {
			return nil, fmt.Errorf("field %s: unknown post %q", fc.Name, fc.Post)
		}

		locs := make([]extract.Locator, 0, len(fc.Locators))
		for i, lc := range fc.Locators {
			loc, err := lc.locator()
			if err != nil {
				return nil, fmt.Errorf("field %s: locator %d: %w", fc.Name, i, err)
			}
			locs = append(locs, loc)
		}

		fields = append(fields, extract.FieldSpec{
			Name:     fc.Name,
			Locators: locs,
			Post:     post,
			Required: fc.Required,
		})
	}

	var opts []extract.Option
	if c.DeriveBrand {
		opts = append(opts, extract.DeriveBrand())
	}
	return extract.NewSchema(fields, opts...)
}

func (c LocatorConfig) locator() (extract.Locator, error) {
	set := 0
	for _, v := range []string{c.CSS, c.Rows, c.Regex, c.JSON} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return extract.Locator{}, errors.New("exactly one of css, rows, regex or json is required")
	}

	switch {
	case c.JSON != "":
		return extract.JSON(c.JSON), nil

	case c.Regex != "":
		if _, err := regexp.Compile(c.Regex); err != nil {
			return extract.Locator{}, fmt.Errorf("invalid regex: %w", err)
		}
		if c.InHTML {
			return extract.RegexHTML(c.Regex), nil
		}
		return extract.Regex(c.Regex), nil

	case c.Rows != "":
		if c.Key == "" || c.Value == "" {
			return extract.Locator{}, errors.New("rows needs key and value selectors")
		}
		return extract.Pairs(c.Rows, c.Key, c.Value), nil
	}

	switch {
	case c.All:
		return extract.CSSAll(c.CSS, c.Attr), nil
	case c.InnerHTML:
		return extract.HTML(c.CSS), nil
	case c.Attr != "":
		return extract.Attr(c.CSS, c.Attr), nil
	}
	return extract.CSS(c.CSS), nil
}
