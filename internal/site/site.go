// Package site holds per-site configuration: which hosts a site covers,
// where its embedded data lives and the schemas used to read its pages.
package site

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/law-makers/pricecrawl/internal/document"
	"github.com/law-makers/pricecrawl/internal/extract"
)

// Site is the declarative configuration for one target site
type Site struct {
	Name  string
	Hosts []string

	// ProductPattern, when set, must match a product URL's path
	ProductPattern *regexp.Regexp
	PageParam      string
	// WarmUpURL is visited first by strategies that warm up a session
	WarmUpURL string

	Islands []document.Island
	Product *extract.Schema
	Listing *extract.Listing

	// BlockSignatures are added to the default block/challenge denylist
	BlockSignatures []string
	MinBodyLength   int
	// Strategies overrides the configured acquisition ladder
	Strategies []string
}

// Matches reports whether host belongs to the site
func (s *Site) Matches(host string) bool {
	return s.matchLen(host) >= 0
}

// matchLen is the length of the longest configured host covering host, or -1
func (s *Site) matchLen(host string) int {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	best := -1
	for _, h := range s.Hosts {
		h = strings.ToLower(h)
		if (host == h || strings.HasSuffix(host, "."+h)) && len(h) > best {
			best = len(h)
		}
	}
	return best
}

// IsProduct reports whether u looks like one of the site's product URLs
func (s *Site) IsProduct(u *url.URL) bool {
	if s.ProductPattern == nil {
		return true
	}
	return s.ProductPattern.MatchString(u.Path)
}

// Registry finds the site configuration for a URL
type Registry struct {
	mu    sync.RWMutex
	sites map[string]*Site
	order []string
}

// NewRegistry creates a registry holding sites. Later sites replace earlier
// ones with the same name.
func NewRegistry(sites ...*Site) *Registry {
	r := &Registry{sites: make(map[string]*Site)}
	for _, s := range sites {
		r.Add(s)
	}
	return r
}

// Add registers s, replacing any site with the same name
func (r *Registry) Add(s *Site) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sites[s.Name]; !ok {
		r.order = append(r.order, s.Name)
	}
	r.sites[s.Name] = s
}

// Get returns a site by name
func (r *Registry) Get(name string) (*Site, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sites[name]
	return s, ok
}

// Match returns the site whose hosts cover rawURL. The most specific host wins.
func (r *Registry) Match(rawURL string) (*Site, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, false
	}
	host := u.Hostname()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Site
	bestLen := -1
	for _, name := range r.order {
		s := r.sites[name]
		if n := s.matchLen(host); n > bestLen {
			best, bestLen = s, n
		}
	}
	return best, best != nil
}

// Sites returns the registered sites sorted by name
func (r *Registry) Sites() []*Site {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Site, 0, len(r.sites))
	for _, s := range r.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks that a site is usable
func (s *Site) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("site has no name")
	}
	if s.Product == nil && s.Listing == nil {
		return fmt.Errorf("site %s: needs a product schema or a listing", s.Name)
	}
	if s.Listing != nil {
		if s.Listing.Schema == nil {
			return fmt.Errorf("site %s: listing has no schema", s.Name)
		}
		if s.Listing.ItemSelector == "" && s.Listing.ItemsPath == "" {
			return fmt.Errorf("site %s: listing needs item_selector or items_path", s.Name)
		}
	}
	return nil
}
