// Package normalize converts raw extracted text into typed field values.
//
// Every function here is pure and total: malformed input yields a zero value
// and a false flag (or an empty string), never a panic.
package normalize

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRe   = regexp.MustCompile(`\d[\d,]*(?:\.\d{1,2})?`)
	percentRe = regexp.MustCompile(`(\d+)\s*%`)
)

// ParsePrice returns the first price-looking number in text.
// Currency symbols and thousands separators are ignored.
func ParsePrice(text string) (float64, bool) {
	m := priceRe.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParsePercent returns the integer in front of the first "%" in text
func ParsePercent(text string) (int, bool) {
	m := percentRe.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// DiscountAmount is mrp - selling when the item is actually discounted, else 0
func DiscountAmount(mrp, selling float64) float64 {
	if mrp <= selling {
		return 0
	}
	return math.Round((mrp-selling)*100) / 100
}

// DiscountPercent is the rounded discount relative to mrp. Zero mrp yields 0.
func DiscountPercent(mrp, selling float64) int {
	if mrp <= 0 || mrp <= selling {
		return 0
	}
	return int(math.Round((mrp - selling) / mrp * 100))
}

// ImageURL resolves protocol-relative and root-relative image URLs against
// origin ("https://host"). Absolute http(s) URLs pass through unchanged;
// anything that does not look like a URL becomes "".
func ImageURL(raw, origin string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "//"):
		scheme := "https"
		if o, err := url.Parse(origin); err == nil && o.Scheme != "" {
			scheme = o.Scheme
		}
		return checkAbsolute(scheme + ":" + raw)
	case strings.HasPrefix(raw, "/"):
		if origin == "" {
			return ""
		}
		return checkAbsolute(strings.TrimRight(origin, "/") + raw)
	}
	return checkAbsolute(raw)
}

func checkAbsolute(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if strings.ContainsAny(s, " \t\n") {
		return ""
	}
	return s
}

// Origin returns scheme://host for rawURL, or "" when it has no host
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Dedupe removes repeated values and keeps the first occurrence of each
func Dedupe[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Text trims s and collapses internal runs of whitespace to single spaces
func Text(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
