// internal/engine/static/scraper.go
package static

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/law-makers/pricecrawl/internal/config"
	"github.com/law-makers/pricecrawl/internal/proxy"
	"github.com/law-makers/pricecrawl/internal/ratelimit"
	"github.com/law-makers/pricecrawl/internal/retry"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// Name of the plain HTTP strategy
const Name = "static"

// maxBody caps how much of a response is read
const maxBody = 10 << 20

// Scraper fetches pages with plain HTTP requests. It is the cheapest rung of
// the acquisition ladder and cannot run JavaScript.
type Scraper struct {
	limiter   ratelimit.RateLimiter
	proxies   *proxy.ProxyPool
	client    *http.Client
	retry     retry.Config
	userAgent string

	mu         sync.Mutex
	transports map[string]*http.Transport
}

// New creates a static Scraper. proxies may be nil for direct connections.
func New(lim ratelimit.RateLimiter, proxies *proxy.ProxyPool, client *http.Client, rc retry.Config, ua string) *Scraper {
	if lim == nil {
		lim = ratelimit.Unlimited{}
	}
	if client == nil {
		client = &http.Client{}
	}
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	return &Scraper{
		limiter:    lim,
		proxies:    proxies,
		client:     client,
		retry:      rc,
		userAgent:  ua,
		transports: make(map[string]*http.Transport),
	}
}

// Name returns the name of this scraper
func (s *Scraper) Name() string {
	return Name
}

// Fetch retrieves a page. Retryable statuses (429, 5xx) and transport errors
// are retried with backoff, rotating proxies between attempts. The last
// response is returned even when its status is an error so the caller's
// validation can classify it.
func (s *Scraper) Fetch(ctx context.Context, opts models.RequestOptions) (*models.PageData, error) {
	start := time.Now()

	log.Debug().
		Str("url", opts.URL).
		Str("scraper", s.Name()).
		Msg("Starting fetch")

	var last *models.PageData
	err := retry.WithRetry(ctx, s.retry, func() error {
		if err := s.limiter.Wait(ctx, opts.URL); err != nil {
			return retry.Permanent(err)
		}

		proxyAddr := s.proxies.GetNext()
		page, err := s.do(ctx, opts, proxyAddr)
		if err != nil {
			s.proxies.MarkFailed(proxyAddr)
			return err
		}
		s.proxies.MarkHealthy(proxyAddr)

		last = page
		if page.StatusCode == http.StatusTooManyRequests || page.StatusCode >= 500 {
			return retry.NewHTTPError(page.StatusCode, http.StatusText(page.StatusCode), "")
		}
		return nil
	})

	if last == nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	last.ResponseTime = time.Since(start).Milliseconds()

	log.Debug().
		Str("url", opts.URL).
		Int("status", last.StatusCode).
		Int64("response_time_ms", last.ResponseTime).
		Int("bytes", len(last.HTML)).
		Msg("Fetch completed")

	return last, nil
}

func (s *Scraper) do(ctx context.Context, opts models.RequestOptions, proxyAddr string) (*models.PageData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = s.userAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")

	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	client, err := s.clientFor(proxyAddr)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	page := &models.PageData{
		URL:        opts.URL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		HTML:       string(body),
		Headers:    make(map[string]string, len(resp.Header)),
		FetchedBy:  s.Name(),
		FetchedAt:  time.Now(),
	}
	for key, values := range resp.Header {
		if len(values) > 0 {
			page.Headers[key] = values[0]
		}
	}
	return page, nil
}

// clientFor returns a client routed through proxyAddr, reusing one
// transport per proxy so connections are pooled.
func (s *Scraper) clientFor(proxyAddr string) (*http.Client, error) {
	if proxyAddr == "" {
		return s.client, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tr, ok := s.transports[proxyAddr]
	if !ok {
		u, err := proxy.URL(proxyAddr)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", proxyAddr, err)
		}
		tr = http.DefaultTransport.(*http.Transport).Clone()
		tr.Proxy = http.ProxyURL(u)
		s.transports[proxyAddr] = tr
	}

	c := *s.client
	c.Transport = tr
	return &c, nil
}
