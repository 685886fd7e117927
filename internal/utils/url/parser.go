package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Parse parses urlStr and requires an absolute http(s) URL with a host
func Parse(urlStr string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme: must be http or https, got %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}

	return parsed, nil
}

// ValidateURL performs comprehensive URL validation
func ValidateURL(urlStr string) error {
	_, err := Parse(urlStr)
	return err
}

// ResolveURL resolves a possibly-relative href against a base URL and returns a string
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(u).String()
}
