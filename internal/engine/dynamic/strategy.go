package dynamic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/law-makers/pricecrawl/internal/config"
	"github.com/law-makers/pricecrawl/internal/ratelimit"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// Strategy names
const (
	Rendered = "rendered"
	Stealth  = "stealth"
	Identity = "identity"
)

// ErrNoBrowser is returned when a browser strategy has no session
var ErrNoBrowser = errors.New("no browser session")

var identityViewport = &Viewport{Width: 1440, Height: 900}

// Scraper is a browser-backed acquisition strategy. The three variants share
// one implementation and differ only in the render request they build.
type Scraper struct {
	name      string
	browser   Browser
	limiter   ratelimit.RateLimiter
	userAgent string
	settle    time.Duration
	build     func(req *RenderRequest, opts models.RequestOptions)
}

// NewRendered renders the page with JavaScript enabled and nothing else
func NewRendered(b Browser, lim ratelimit.RateLimiter, ua string) *Scraper {
	return newScraper(Rendered, b, lim, ua, time.Second, func(req *RenderRequest, _ models.RequestOptions) {
		req.BlockResources = true
	})
}

// NewStealth hides automation fingerprints, visits the site's home page
// first and moves the mouse before reading the page.
func NewStealth(b Browser, lim ratelimit.RateLimiter, ua string) *Scraper {
	return newScraper(Stealth, b, lim, ua, 2*time.Second, func(req *RenderRequest, opts models.RequestOptions) {
		req.Evasion = true
		req.Interact = true
		req.WarmUpURL = opts.WarmUpURL
	})
}

// NewIdentity presents as a different browser: alternate user agent, accept
// language and viewport, with cookies cleared before navigating.
func NewIdentity(b Browser, lim ratelimit.RateLimiter, altUA string) *Scraper {
	if altUA == "" {
		altUA = config.DefaultAltUserAgent
	}
	s := newScraper(Identity, b, lim, altUA, 2*time.Second, func(req *RenderRequest, _ models.RequestOptions) {
		req.Evasion = true
		req.ClearCookies = true
		req.AcceptLanguage = "en-GB,en;q=0.8"
		req.Viewport = identityViewport
	})
	return s
}

func newScraper(name string, b Browser, lim ratelimit.RateLimiter, ua string, settle time.Duration, build func(*RenderRequest, models.RequestOptions)) *Scraper {
	if lim == nil {
		lim = ratelimit.Unlimited{}
	}
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	return &Scraper{
		name:      name,
		browser:   b,
		limiter:   lim,
		userAgent: ua,
		settle:    settle,
		build:     build,
	}
}

// Name returns the strategy name
func (s *Scraper) Name() string {
	return s.name
}

// Fetch renders opts.URL in a new tab of the session
func (s *Scraper) Fetch(ctx context.Context, opts models.RequestOptions) (*models.PageData, error) {
	if s.browser == nil {
		return nil, ErrNoBrowser
	}
	start := time.Now()

	log.Debug().
		Str("url", opts.URL).
		Str("scraper", s.name).
		Msg("Starting fetch")

	if err := s.limiter.Wait(ctx, opts.URL); err != nil {
		return nil, err
	}

	req := RenderRequest{
		URL:       opts.URL,
		Headers:   opts.Headers,
		UserAgent: s.userAgent,
		Settle:    s.settle,
	}
	// The identity strategy keeps its own user agent
	if opts.UserAgent != "" && s.name != Identity {
		req.UserAgent = opts.UserAgent
	}
	s.build(&req, opts)

	res, err := s.browser.Render(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s render failed: %w", s.name, err)
	}

	page := &models.PageData{
		URL:          opts.URL,
		FinalURL:     res.FinalURL,
		StatusCode:   res.StatusCode,
		Title:        res.Title,
		HTML:         res.HTML,
		Headers:      res.Headers,
		FetchedBy:    s.name,
		FetchedAt:    time.Now(),
		ResponseTime: time.Since(start).Milliseconds(),
	}

	log.Debug().
		Str("url", opts.URL).
		Str("scraper", s.name).
		Int("status", page.StatusCode).
		Int64("response_time_ms", page.ResponseTime).
		Msg("Fetch completed")

	return page, nil
}
