// Package scrape exposes the three top-level operations: one product, one
// listing page, and a run over several listing pages. Each operation owns its
// browser session and reports failures as *engine.EngineError values.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/law-makers/pricecrawl/internal/cache"
	"github.com/law-makers/pricecrawl/internal/config"
	"github.com/law-makers/pricecrawl/internal/diag"
	"github.com/law-makers/pricecrawl/internal/document"
	"github.com/law-makers/pricecrawl/internal/engine"
	"github.com/law-makers/pricecrawl/internal/engine/dynamic"
	"github.com/law-makers/pricecrawl/internal/extract"
	"github.com/law-makers/pricecrawl/internal/pagination"
	"github.com/law-makers/pricecrawl/internal/reqctx"
	"github.com/law-makers/pricecrawl/internal/site"
	urlutil "github.com/law-makers/pricecrawl/internal/utils/url"
	"github.com/law-makers/pricecrawl/pkg/models"
)

// Session is a browser owned by one operation
type Session = dynamic.Releasable

// PlanFunc builds the acquisition ladder for a site. browser is the
// operation's session and is only launched if a browser step runs.
type PlanFunc func(s *site.Site, browser dynamic.Browser) (engine.Plan, error)

// Options configures a Service
type Options struct {
	Registry *site.Registry
	// Site forces a site by name instead of matching the URL host
	Site string

	Plan       PlanFunc
	NewSession func() Session

	Headers   map[string]string
	UserAgent string

	// Timeout bounds a whole operation, including every page of a run
	Timeout   time.Duration
	PageDelay time.Duration

	Cache         cache.Cache
	CacheTTL      time.Duration
	CacheFallback bool

	// PageParam overrides the site's page query parameter
	PageParam string

	// OnPage observes listing runs page by page
	OnPage func(outcome models.PageOutcome, done, total int)

	Sink diag.Sink
	Now  func() time.Time
}

// Service runs scrape operations. It is safe for concurrent use; operations
// share nothing but the cache and whatever the plan's strategies share.
type Service struct {
	opts Options
}

// New creates a Service
func New(opts Options) (*Service, error) {
	if opts.Registry == nil {
		return nil, errors.New("site registry is required")
	}
	if opts.Plan == nil {
		return nil, errors.New("plan builder is required")
	}
	if opts.NewSession == nil {
		return nil, errors.New("session factory is required")
	}
	if opts.Site != "" {
		if _, ok := opts.Registry.Get(opts.Site); !ok {
			return nil, fmt.Errorf("%w: %s", engine.ErrUnknownSite, opts.Site)
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultOperationTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = config.DefaultCacheTTL
	}
	if opts.Sink == nil {
		opts.Sink = diag.Nop
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{opts: opts}, nil
}

// ScrapeSingle acquires one product page and extracts its record
func (s *Service) ScrapeSingle(ctx context.Context, rawURL string) (rec *models.ProductRecord, err error) {
	ctx = reqctx.WithRequestContext(ctx, "scrape_single")
	logger := reqctx.Logger(ctx)
	defer s.recoverInto(ctx, &err)

	st, err := s.resolve(rawURL, true)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var fetchedBy string
	err = dynamic.WithSession(ctx, s.opts.NewSession, func(sess Session) error {
		op, err := s.newOperation(st, sess)
		if err != nil {
			return err
		}

		logger.Info().Str("url", rawURL).Str("site", st.Name).Strs("plan", op.acquirer.Plan().Names()).Msg("Scraping product")

		doc, source, err := op.acquire(ctx, rawURL)
		if err != nil {
			return engine.Wrap(err, "failed to acquire product page")
		}
		fetchedBy = doc.FetchedBy

		rec, err = extract.New(source, s.opts.Sink).WithClock(s.opts.Now).Extract(doc, st.Product)
		if err != nil {
			return engine.Wrap(err, "failed to extract product")
		}
		rec.URL = rawURL
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("url", rawURL).
		Str("fetched_by", fetchedBy).
		Int("fields", len(rec.Fields)).
		Dur("elapsed", reqctx.GetRequestContext(ctx).Elapsed()).
		Msg("Product scraped")
	return rec, nil
}

// ScrapeListingPage scrapes a single listing page. Failures are reported in
// the outcome's Error.
func (s *Service) ScrapeListingPage(ctx context.Context, rawURL string, page int) models.PageOutcome {
	batch, err := s.ScrapeListingPages(ctx, rawURL, []int{page})
	if err != nil {
		return models.PageOutcome{Page: page, Records: []*models.ProductRecord{}, Error: err.Error()}
	}
	return batch.Outcomes[0]
}

// ScrapeListingPages scrapes every requested listing page in ascending order.
// Page failures are isolated into their outcomes; the error is non-nil only
// when the request itself is invalid or the run could not start.
func (s *Service) ScrapeListingPages(ctx context.Context, rawURL string, pages []int) (batch *models.BatchResult, err error) {
	ctx = reqctx.WithRequestContext(ctx, "scrape_listing")
	logger := reqctx.Logger(ctx)
	defer s.recoverInto(ctx, &err)

	st, err := s.resolve(rawURL, false)
	if err != nil {
		return nil, err
	}
	if st.Listing == nil {
		return nil, engine.NewEngineError(engine.ErrCodeValidation, "site has no listing configuration", engine.ErrUnknownSite).
			WithDetail("site", st.Name)
	}
	if err := validatePages(pages); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	param := st.PageParam
	if s.opts.PageParam != "" {
		param = s.opts.PageParam
	}

	err = dynamic.WithSession(ctx, s.opts.NewSession, func(sess Session) error {
		op, err := s.newOperation(st, sess)
		if err != nil {
			return err
		}

		orch := &pagination.Orchestrator{
			Param:  param,
			Delay:  s.opts.PageDelay,
			OnPage: s.opts.OnPage,
			Sink:   s.opts.Sink,
			Fetch: func(ctx context.Context, pageURL string, page int) ([]*models.ProductRecord, error) {
				doc, source, err := op.acquire(ctx, pageURL)
				if err != nil {
					return nil, engine.Wrap(err, fmt.Sprintf("page %d", page))
				}
				records, err := extract.New(source, s.opts.Sink).WithClock(s.opts.Now).ExtractList(doc, st.Listing)
				if err != nil {
					return nil, engine.Wrap(err, fmt.Sprintf("page %d", page))
				}
				return records, nil
			},
		}

		logger.Info().Str("url", rawURL).Str("site", st.Name).Ints("pages", pages).Msg("Scraping listing")

		batch = orch.RunPages(ctx, rawURL, pages)
		batch.RunID = reqctx.GetRequestContext(ctx).RequestID
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("success", batch.SuccessCount).
		Int("failure", batch.FailureCount).
		Int("records", len(batch.AllRecords)).
		Dur("elapsed", reqctx.GetRequestContext(ctx).Elapsed()).
		Msg("Listing scraped")
	return batch, nil
}

// resolve validates rawURL and finds its site before anything is fetched
func (s *Service) resolve(rawURL string, product bool) (*site.Site, error) {
	u, err := urlutil.Parse(rawURL)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeValidation, err.Error(), engine.ErrInvalidURL).
			WithDetail("url", rawURL)
	}

	var st *site.Site
	var ok bool
	if s.opts.Site != "" {
		st, ok = s.opts.Registry.Get(s.opts.Site)
	} else {
		st, ok = s.opts.Registry.Match(rawURL)
	}
	if !ok {
		return nil, engine.NewEngineError(engine.ErrCodeValidation, "URL does not belong to a configured site", engine.ErrUnknownSite).
			WithDetail("host", u.Host)
	}

	if product {
		if st.Product == nil {
			return nil, engine.NewEngineError(engine.ErrCodeValidation, "site has no product configuration", engine.ErrUnknownSite).
				WithDetail("site", st.Name)
		}
		if !st.IsProduct(u) {
			return nil, engine.NewEngineError(engine.ErrCodeValidation, "URL is not a product page for "+st.Name, engine.ErrInvalidURL).
				WithDetail("url", rawURL)
		}
	}
	return st, nil
}

func validatePages(pages []int) error {
	if len(pages) == 0 {
		return engine.NewEngineError(engine.ErrCodeValidation, "no pages requested", engine.ErrInvalidPage)
	}
	for _, p := range pages {
		if p < 1 {
			return engine.NewEngineError(engine.ErrCodeValidation, fmt.Sprintf("invalid page %d", p), engine.ErrInvalidPage)
		}
	}
	return nil
}

// recoverInto turns a panic into an INTERNAL error. Deferred functions
// registered after it, such as closing the session, have already run.
func (s *Service) recoverInto(ctx context.Context, err *error) {
	r := recover()
	if r == nil {
		return
	}
	logger := reqctx.Logger(ctx)
	logger.Error().
		Interface("panic", r).
		Bytes("stack", debug.Stack()).
		Msg("Recovered from panic")
	*err = engine.NewEngineError(engine.ErrCodeInternal, fmt.Sprintf("unexpected failure: %v", r), nil).
		WithDetail("request_id", reqctx.GetRequestContext(ctx).RequestID)
}

// operation is the per-call state: one site, one session, one acquirer
type operation struct {
	svc      *Service
	site     *site.Site
	acquirer *engine.Acquirer
}

func (s *Service) newOperation(st *site.Site, sess Session) (*operation, error) {
	plan, err := s.opts.Plan(st, sess)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeInternal, "failed to build acquisition plan", err)
	}
	acq, err := engine.NewAcquirer(plan, engine.AcquirerOptions{
		Islands:   st.Islands,
		Headers:   s.opts.Headers,
		UserAgent: s.opts.UserAgent,
		WarmUpURL: st.WarmUpURL,
		Sink:      s.opts.Sink,
	})
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeInternal, "failed to build acquirer", err)
	}
	return &operation{svc: s, site: st, acquirer: acq}, nil
}

// acquire runs the ladder for pageURL and returns the document with the
// source tag records extracted from it should carry. Successful pages are
// remembered; when fallback is enabled an acquisition failure is answered
// from that copy.
func (o *operation) acquire(ctx context.Context, pageURL string) (*document.Document, string, error) {
	c := o.svc.opts.Cache
	doc, page, err := o.acquirer.AcquirePage(ctx, pageURL)
	if err == nil {
		if c != nil {
			if err := c.Set(cache.Key(pageURL), page, o.svc.opts.CacheTTL); err != nil {
				logger := reqctx.Logger(ctx)
				logger.Debug().Err(err).Str("url", pageURL).Msg("Page not cached")
			}
		}
		return doc, o.site.Name, nil
	}

	if !o.svc.opts.CacheFallback || c == nil {
		return nil, "", err
	}
	if code := engine.Classify(err); code != engine.ErrCodeAcquisition && code != engine.ErrCodeBlocked {
		return nil, "", err
	}
	cached, ok := c.Get(cache.Key(pageURL))
	if !ok {
		return nil, "", err
	}
	doc, perr := o.acquirer.Parse(cached)
	if perr != nil {
		return nil, "", err
	}

	diag.Emit(o.svc.opts.Sink, diag.Warn, "acquire.cache_fallback", diag.F{
		"url":       pageURL,
		"cached_at": cached.FetchedAt,
		"error":     err.Error(),
	})
	return doc, o.site.Name + ":cache", nil
}
