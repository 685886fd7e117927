package scrape

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/law-makers/pricecrawl/internal/cache"
	"github.com/law-makers/pricecrawl/internal/diag"
	"github.com/law-makers/pricecrawl/internal/document"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/engine/dynamic"
	"github.com/law-makers/pricecrawl/internal/extract"
	"github.com/law-makers/pricecrawl/internal/site"
	"github.com/law-makers/pricecrawl/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pages serves canned HTML by URL
type pages struct {
	mu    sync.Mutex
	html  map[string]string
	fail  map[string]error
	delay time.Duration
	panic bool
	calls []string
}

func (p *pages) Name() string { return "fake" }

func (p *pages) Fetch(ctx context.Context, opts models.RequestOptions) (*models.PageData, error) {
	p.mu.Lock()
	p.calls = append(p.calls, opts.URL)
	p.mu.Unlock()

	if p.panic {
		panic("strategy bug")
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := p.fail[opts.URL]; err != nil {
		return nil, err
	}
	html, ok := p.html[opts.URL]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return &models.PageData{URL: opts.URL, StatusCode: 200, HTML: html, FetchedAt: time.Now()}, nil
}

func (p *pages) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type fakeSession struct {
	mu     sync.Mutex
	closed int
}

func (f *fakeSession) Render(context.Context, dynamic.RenderRequest) (*dynamic.RenderResult, error) {
	return nil, errors.New("no browser in tests")
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

type harness struct {
	svc      *Service
	pages    *pages
	sessions []*fakeSession
	mu       sync.Mutex
}

func (h *harness) closed() (opened, closed int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sessions {
		s.mu.Lock()
		closed += s.closed
		s.mu.Unlock()
	}
	return len(h.sessions), closed
}

var accept = engine.ValidatorFunc(func(*document.Document) error { return nil })

func shopSite() *site.Site {
	return &site.Site{
		Name:      "shop",
		Hosts:     []string{"shop.example"},
		PageParam: "page",
		Islands:   []document.Island{{Selector: "script#__DATA__"}},
		Product: extract.MustSchema([]extract.FieldSpec{
			{Name: extract.FieldTitle, Required: true, Post: extract.Text, Locators: []extract.Locator{
				extract.JSON("name"),
				extract.CSS("h1"),
			}},
			{Name: extract.FieldMRP, Post: extract.Price, Locators: []extract.Locator{
				extract.JSON("price.mrp"),
				extract.CSS(".mrp"),
			}},
			{Name: extract.FieldSellingPrice, Post: extract.Price, Locators: []extract.Locator{
				extract.JSON("price.selling"),
				extract.CSS(".price"),
			}},
		}),
		Listing: &extract.Listing{
			ItemSelector: "li.card",
			Schema: extract.MustSchema([]extract.FieldSpec{
				{Name: extract.FieldTitle, Required: true, Post: extract.Text, Locators: []extract.Locator{
					extract.CSS(".name"),
				}},
			}),
		},
	}
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{pages: &pages{html: map[string]string{}, fail: map[string]error{}}}

	opts := Options{
		Registry: site.NewRegistry(shopSite()),
		Plan: func(s *site.Site, b dynamic.Browser) (engine.Plan, error) {
			if b == nil {
				return nil, errors.New("no session")
			}
			return engine.Plan{{Strategy: h.pages, Timeout: time.Second, Validate: accept}}, nil
		},
		NewSession: func() Session {
			h.mu.Lock()
			defer h.mu.Unlock()
			s := &fakeSession{}
			h.sessions = append(h.sessions, s)
			return s
		},
		Timeout: 5 * time.Second,
		Now:     func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&opts)
	}

	svc, err := New(opts)
	require.NoError(t, err)
	h.svc = svc
	return h
}

const productURL = "https://shop.example/p/1"

const productHTML = `<html><body><h1>DOM title</h1>
<script id="__DATA__" type="application/json">{"name":"Widget","price":{"mrp":999,"selling":799}}</script>
</body></html>`

func code(t *testing.T, err error) engine.ErrorCode {
	t.Helper()
	var ee *engine.EngineError
	require.True(t, errors.As(err, &ee), "expected *engine.EngineError, got %T: %v", err, err)
	return ee.Code
}

func TestScrapeSingleStructuredData(t *testing.T) {
	h := newHarness(t, nil)
	h.pages.html[productURL] = productHTML

	rec, err := h.svc.ScrapeSingle(context.Background(), productURL)
	require.NoError(t, err)

	assert.Equal(t, "Widget", rec.Fields[extract.FieldTitle])
	assert.Equal(t, 999.0, rec.Fields[extract.FieldMRP])
	assert.Equal(t, 799.0, rec.Fields[extract.FieldSellingPrice])
	assert.Equal(t, 200.0, rec.Fields[extract.FieldDiscount])
	assert.Equal(t, 20, rec.Fields[extract.FieldDiscountPercent])
	assert.Equal(t, "shop", rec.Source)
	assert.Equal(t, productURL, rec.URL)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), rec.ScrapedAt)

	opened, closed := h.closed()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestScrapeSingleValidation(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		s := shopSite()
		s.Name = "strict"
		s.Hosts = []string{"strict.example"}
		s.ProductPattern = regexpMust(`^/p/\d+$`)
		o.Registry.Add(s)
	})

	for _, u := range []string{
		"",
		"not a url",
		"ftp://shop.example/p/1",
		"https://elsewhere.example/p/1",
		"https://strict.example/category/shoes",
	} {
		_, err := h.svc.ScrapeSingle(context.Background(), u)
		require.Error(t, err, u)
		assert.Equal(t, engine.ErrCodeValidation, code(t, err), u)
	}

	assert.Empty(t, h.pages.Calls(), "nothing is fetched for invalid requests")
	opened, _ := h.closed()
	assert.Equal(t, 0, opened, "no session is opened for invalid requests")
}

func TestScrapeSingleRequiredField(t *testing.T) {
	h := newHarness(t, nil)
	h.pages.html[productURL] = `<html><body><p>nothing here</p></body></html>`

	rec, err := h.svc.ScrapeSingle(context.Background(), productURL)
	assert.Nil(t, rec)
	assert.Equal(t, engine.ErrCodeExtraction, code(t, err))
	assert.ErrorIs(t, err, extract.ErrRequiredField)

	_, closed := h.closed()
	assert.Equal(t, 1, closed)
}

func TestScrapeSingleAcquisitionFailure(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.ScrapeSingle(context.Background(), productURL)
	assert.Equal(t, engine.ErrCodeAcquisition, code(t, err))

	var ae *engine.AcquisitionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"fake"}, ae.Tried)

	_, closed := h.closed()
	assert.Equal(t, 1, closed)
}

func TestScrapeSingleCacheFallback(t *testing.T) {
	mc := cache.NewMemoryCache(0, time.Minute)
	t.Cleanup(mc.Close)
	rec := &diag.Recorder{}

	h := newHarness(t, func(o *Options) {
		o.Cache = mc
		o.CacheFallback = true
		o.Sink = rec
	})
	h.pages.html[productURL] = productHTML

	first, err := h.svc.ScrapeSingle(context.Background(), productURL)
	require.NoError(t, err)
	assert.Equal(t, "shop", first.Source)

	delete(h.pages.html, productURL)

	second, err := h.svc.ScrapeSingle(context.Background(), productURL)
	require.NoError(t, err)
	assert.Equal(t, "shop:cache", second.Source)
	assert.Equal(t, first.Fields[extract.FieldTitle], second.Fields[extract.FieldTitle])
	assert.Len(t, rec.Named("acquire.cache_fallback"), 1)
}

func TestScrapeSingleNoFallbackByDefault(t *testing.T) {
	mc := cache.NewMemoryCache(0, time.Minute)
	t.Cleanup(mc.Close)

	h := newHarness(t, func(o *Options) { o.Cache = mc })
	h.pages.html[productURL] = productHTML

	_, err := h.svc.ScrapeSingle(context.Background(), productURL)
	require.NoError(t, err)

	delete(h.pages.html, productURL)
	_, err = h.svc.ScrapeSingle(context.Background(), productURL)
	assert.Equal(t, engine.ErrCodeAcquisition, code(t, err))
}

func TestScrapeSingleTimeout(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Timeout = 50 * time.Millisecond })
	h.pages.html[productURL] = productHTML
	h.pages.delay = time.Second

	start := time.Now()
	_, err := h.svc.ScrapeSingle(context.Background(), productURL)
	assert.Equal(t, engine.ErrCodeTimeout, code(t, err))
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	_, closed := h.closed()
	assert.Equal(t, 1, closed, "session is released on timeout")
}

func TestScrapeSinglePanic(t *testing.T) {
	h := newHarness(t, nil)
	h.pages.panic = true

	_, err := h.svc.ScrapeSingle(context.Background(), productURL)
	assert.Equal(t, engine.ErrCodeInternal, code(t, err))
	assert.Contains(t, err.Error(), "strategy bug")

	_, closed := h.closed()
	assert.Equal(t, 1, closed, "session is released after a panic")
}

func listingHTML(names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, n := range names {
		b.WriteString(`<li class="card"><span class="name">` + n + `</span></li>`)
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

func TestScrapeListingPagesPartialFailure(t *testing.T) {
	var progress []int
	h := newHarness(t, func(o *Options) {
		o.OnPage = func(_ models.PageOutcome, done, _ int) { progress = append(progress, done) }
	})
	base := "https://shop.example/s?q=lamp"
	h.pages.html["https://shop.example/s?page=1&q=lamp"] = listingHTML("a", "b")
	h.pages.fail["https://shop.example/s?page=2&q=lamp"] = engine.ErrBlocked
	h.pages.html["https://shop.example/s?page=3&q=lamp"] = listingHTML("c")

	batch, err := h.svc.ScrapeListingPages(context.Background(), base, []int{3, 1, 3, 2})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, batch.UniquePages)
	assert.Equal(t, 2, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailureCount)
	assert.Len(t, batch.AllRecords, 3)
	assert.Contains(t, batch.Outcomes[1].Error, string(engine.ErrCodeBlocked))
	assert.Equal(t, []int{1, 2, 3}, progress)
	assert.NotEmpty(t, batch.RunID)

	for _, r := range batch.AllRecords {
		assert.Equal(t, "shop", r.Source)
	}

	opened, closed := h.closed()
	assert.Equal(t, 1, opened, "one session per run")
	assert.Equal(t, 1, closed)
}

func TestScrapeListingPage(t *testing.T) {
	h := newHarness(t, nil)
	h.pages.html["https://shop.example/s?page=4"] = listingHTML()

	out := h.svc.ScrapeListingPage(context.Background(), "https://shop.example/s", 4)
	assert.Equal(t, 4, out.Page)
	assert.False(t, out.Failed())
	assert.NotNil(t, out.Records)
	assert.Empty(t, out.Records)

	out = h.svc.ScrapeListingPage(context.Background(), "https://shop.example/s", 0)
	assert.True(t, out.Failed())
	assert.Contains(t, out.Error, string(engine.ErrCodeValidation))
	assert.NotNil(t, out.Records)
}

func TestPageParamOverride(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.PageParam = "pg" })
	h.pages.html["https://shop.example/s?pg=2"] = listingHTML("x")

	out := h.svc.ScrapeListingPage(context.Background(), "https://shop.example/s", 2)
	require.False(t, out.Failed(), out.Error)
	require.Len(t, out.Records, 1)
	assert.Equal(t, []string{"https://shop.example/s?pg=2"}, h.pages.Calls())
}

func TestScrapeListingPagesValidation(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.ScrapeListingPages(context.Background(), "https://shop.example/s", nil)
	assert.Equal(t, engine.ErrCodeValidation, code(t, err))

	_, err = h.svc.ScrapeListingPages(context.Background(), "https://shop.example/s", []int{1, -1})
	assert.Equal(t, engine.ErrCodeValidation, code(t, err))
	assert.ErrorIs(t, err, engine.ErrInvalidPage)

	_, err = h.svc.ScrapeListingPages(context.Background(), "https://other.example/s", []int{1})
	assert.ErrorIs(t, err, engine.ErrUnknownSite)

	assert.Empty(t, h.pages.Calls())
}

func TestForcedSite(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Site = "shop" })
	u := "https://mirror.example/p/1"
	h.pages.html[u] = productHTML

	rec, err := h.svc.ScrapeSingle(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "Widget", rec.Fields[extract.FieldTitle])

	_, err = New(Options{
		Registry:   site.NewRegistry(),
		Site:       "nope",
		Plan:       func(*site.Site, dynamic.Browser) (engine.Plan, error) { return nil, nil },
		NewSession: func() Session { return &fakeSession{} },
	})
	assert.ErrorIs(t, err, engine.ErrUnknownSite)
}

func regexpMust(expr string) *regexp.Regexp {
	return regexp.MustCompile(expr)
}
