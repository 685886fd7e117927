// Package extract turns documents into product records using ordered
// fallback chains of locators per field.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/pricecrawl/internal/document"
	"github.com/law-makers/pricecrawl/internal/normalize"
)

// Kind selects how a Locator reads a document
type Kind int

const (
	// KindDOM queries the markup with a CSS selector
	KindDOM Kind = iota
	// KindPattern runs a regular expression over the document text
	KindPattern
	// KindStructured reads a path from the embedded JSON
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindDOM:
		return "dom"
	case KindPattern:
		return "pattern"
	case KindStructured:
		return "structured"
	}
	return "unknown"
}

// Locator is one candidate place where a field's raw value may live.
// Locators are built once from site configuration and never modified.
type Locator struct {
	Kind Kind

	// KindDOM. An empty Selector addresses the document root itself.
	Selector  string
	Attr      string
	All       bool
	InnerHTML bool
	Key       string
	Value     string

	// KindPattern
	Pattern *regexp.Regexp
	// InHTML matches Pattern against the raw markup instead of the visible text
	InHTML bool

	// KindStructured
	Path string
}

// CSS reads the text of the first node matching selector
func CSS(selector string) Locator {
	return Locator{Kind: KindDOM, Selector: selector}
}

// Attr reads an attribute of the first node matching selector
func Attr(selector, attr string) Locator {
	return Locator{Kind: KindDOM, Selector: selector, Attr: attr}
}

// CSSAll reads the text (or attr, when set) of every matching node
func CSSAll(selector, attr string) Locator {
	return Locator{Kind: KindDOM, Selector: selector, Attr: attr, All: true}
}

// HTML reads the inner markup of the first node matching selector
func HTML(selector string) Locator {
	return Locator{Kind: KindDOM, Selector: selector, InnerHTML: true}
}

// Pairs reads a key/value table: every node matching rows contributes the
// text of its key and value sub-selections.
func Pairs(rows, key, value string) Locator {
	return Locator{Kind: KindDOM, Selector: rows, Key: key, Value: value}
}

// Regex matches expr against the document text and yields the first group
func Regex(expr string) Locator {
	return Locator{Kind: KindPattern, Pattern: regexp.MustCompile(expr)}
}

// RegexHTML is Regex over the raw markup, scripts included
func RegexHTML(expr string) Locator {
	return Locator{Kind: KindPattern, Pattern: regexp.MustCompile(expr), InHTML: true}
}

// JSON reads a dotted path from the document's embedded data
func JSON(path string) Locator {
	return Locator{Kind: KindStructured, Path: path}
}

// Resolve returns the first non-empty value produced by locators, in order,
// together with the index of the locator that produced it. Later locators
// are not consulted once one succeeds.
func Resolve(doc *document.Document, locators []Locator) (any, int, bool) {
	return resolve(doc, locators, nil)
}

func resolve(doc *document.Document, locators []Locator, post Post) (any, int, bool) {
	if doc == nil {
		return nil, -1, false
	}
	for i, loc := range locators {
		v := loc.find(doc)
		if isEmpty(v) {
			continue
		}
		if post != nil {
			var ok bool
			if v, ok = post(v, doc); !ok || isEmpty(v) {
				continue
			}
		}
		return v, i, true
	}
	return nil, -1, false
}

func (l Locator) find(doc *document.Document) any {
	switch l.Kind {
	case KindDOM:
		return l.findDOM(doc.Root)
	case KindPattern:
		return l.findPattern(doc)
	case KindStructured:
		v, ok := doc.Lookup(l.Path)
		if !ok {
			return nil
		}
		return v
	}
	return nil
}

func (l Locator) findDOM(root *goquery.Selection) any {
	if root == nil {
		return nil
	}

	sel := root
	if l.Selector != "" {
		sel = root.Find(l.Selector)
	}
	if sel.Length() == 0 {
		return nil
	}

	switch {
	case l.Key != "":
		pairs := make(map[string]any)
		sel.Each(func(_ int, row *goquery.Selection) {
			k := normalize.Text(row.Find(l.Key).First().Text())
			v := normalize.Text(row.Find(l.Value).First().Text())
			if k == "" || v == "" {
				return
			}
			k = strings.TrimRight(k, " :")
			if _, exists := pairs[k]; !exists {
				pairs[k] = v
			}
		})
		return pairs

	case l.All:
		var out []string
		sel.Each(func(_ int, s *goquery.Selection) {
			if v := l.read(s); v != "" {
				out = append(out, v)
			}
		})
		return out
	}

	return l.read(sel.First())
}

func (l Locator) read(s *goquery.Selection) string {
	if l.InnerHTML {
		h, err := s.Html()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(h)
	}
	if l.Attr != "" {
		v, _ := s.Attr(l.Attr)
		return strings.TrimSpace(v)
	}
	return normalize.Text(s.Text())
}

func (l Locator) findPattern(doc *document.Document) any {
	if l.Pattern == nil {
		return nil
	}
	src := doc.Text()
	if l.InHTML {
		src = doc.HTML
	}
	m := l.Pattern.FindStringSubmatch(src)
	switch len(m) {
	case 0:
		return nil
	case 1:
		return strings.TrimSpace(m[0])
	}
	return strings.TrimSpace(m[1])
}

// isEmpty reports whether v carries no usable data
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		for _, s := range t {
			if strings.TrimSpace(s) != "" {
				return false
			}
		}
		return true
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
