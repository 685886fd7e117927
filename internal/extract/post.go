package extract

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/law-makers/pricecrawl/internal/document"
	"github.com/law-makers/pricecrawl/internal/normalize"
	urlutil "github.com/law-makers/pricecrawl/internal/utils/url"
)

// Post converts a raw located value into the field's typed value.
// Returning false makes the chain fall through to the next locator.
type Post func(v any, doc *document.Document) (any, bool)

// Raw keeps the value as located, trimming strings
func Raw(v any, _ *document.Document) (any, bool) {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s), true
	}
	return v, true
}

// Text renders scalars as whitespace-collapsed strings
func Text(v any, _ *document.Document) (any, bool) {
	s, ok := scalarString(v)
	if !ok {
		return nil, false
	}
	s = normalize.Text(s)
	return s, s != ""
}

// Price yields a float64 from numbers or price-looking text
func Price(v any, _ *document.Document) (any, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		return normalize.ParsePrice(t)
	}
	return nil, false
}

// Percent yields an int from numbers or "40% off" text
func Percent(v any, _ *document.Document) (any, bool) {
	switch t := v.(type) {
	case float64:
		return int(math.Round(t)), true
	case int:
		return t, true
	case string:
		if p, ok := normalize.ParsePercent(t); ok {
			return p, true
		}
		if p, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return p, true
		}
	}
	return nil, false
}

// Images resolves every candidate URL against the document origin and
// drops duplicates. A JSON object string (url → dimensions) contributes its
// keys in document order, so the main image stays first.
func Images(v any, doc *document.Document) (any, bool) {
	origin := ""
	if doc != nil {
		origin = doc.Origin
	}

	var raw []string
	for _, s := range flattenStrings(v) {
		raw = append(raw, expandImageField(s)...)
	}

	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if u := normalize.ImageURL(r, origin); u != "" {
			out = append(out, u)
		}
	}
	out = normalize.Dedupe(out)
	return out, len(out) > 0
}

func expandImageField(s string) []string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return []string{s}
	}
	dec := json.NewDecoder(strings.NewReader(s))
	if _, err := dec.Token(); err != nil {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil
		}
		keys = append(keys, key)
	}
	return keys
}

// Markdown converts an HTML fragment to markdown
func Markdown(v any, doc *document.Document) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	origin := ""
	if doc != nil {
		origin = doc.Origin
	}
	out, err := normalize.Markdown(s, origin)
	if err != nil || out == "" {
		return nil, false
	}
	return out, true
}

// Link resolves an href against the document URL, keeping http(s) results only
func Link(v any, doc *document.Document) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	if doc != nil && doc.URL != "" {
		s = urlutil.ResolveURL(doc.URL, s)
	}
	u, err := urlutil.Parse(s)
	if err != nil {
		return nil, false
	}
	return u.String(), true
}

// Strip removes the first matching prefix and suffix from a text value,
// e.g. "Visit the " and " Store" around a brand name.
func Strip(prefixes, suffixes []string) Post {
	return func(v any, doc *document.Document) (any, bool) {
		t, ok := Text(v, doc)
		if !ok {
			return nil, false
		}
		s := t.(string)
		for _, p := range prefixes {
			if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
				s = s[len(p):]
				break
			}
		}
		for _, suf := range suffixes {
			if len(s) >= len(suf) && strings.EqualFold(s[len(s)-len(suf):], suf) {
				s = s[:len(s)-len(suf)]
				break
			}
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
}

// List yields a de-duplicated []string of non-empty texts
func List(v any, _ *document.Document) (any, bool) {
	var out []string
	for _, s := range flattenStrings(v) {
		if s = normalize.Text(s); s != "" {
			out = append(out, s)
		}
	}
	out = normalize.Dedupe(out)
	return out, len(out) > 0
}

// Chain applies posts in order and stops at the first failure
func Chain(posts ...Post) Post {
	return func(v any, doc *document.Document) (any, bool) {
		for _, p := range posts {
			var ok bool
			if v, ok = p(v, doc); !ok {
				return nil, false
			}
		}
		return v, true
	}
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func flattenStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		var out []string
		for _, el := range t {
			out = append(out, flattenStrings(el)...)
		}
		return out
	}
	if s, ok := scalarString(v); ok {
		return []string{s}
	}
	return nil
}
